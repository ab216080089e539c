// Package server exposes the viewer, profiles and player over a local JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voyagen/matrixiptv/api"
	xlog "github.com/voyagen/matrixiptv/internal/log"
	"github.com/voyagen/matrixiptv/internal/player"
	"github.com/voyagen/matrixiptv/internal/profile"
	"github.com/voyagen/matrixiptv/internal/service"
)

// Default limits for endpoints that fetch playlists.
const (
	DefaultLoadLimit  = 30
	DefaultLoadWindow = time.Minute
)

// PlayerStatus reports what is playing and whether an external player exists.
type PlayerStatus interface {
	NowPlaying() (player.NowPlaying, bool)
	ExternalAvailable() bool
}

// Server holds dependencies for the HTTP API.
type Server struct {
	viewer   *service.Viewer
	profiles *profile.Store
	player   PlayerStatus
	logger   zerolog.Logger

	loadLimit  int
	loadWindow time.Duration

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLoadLimit overrides the rate limit on playlist-loading endpoints.
func WithLoadLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.loadLimit = limit
		s.loadWindow = window
	}
}

// New creates a Server and registers routes. ps may be nil.
func New(v *service.Viewer, profiles *profile.Store, ps PlayerStatus, opts ...Option) *Server {
	s := &Server{
		viewer:     v,
		profiles:   profiles,
		player:     ps,
		logger:     xlog.WithComponent("server"),
		loadLimit:  DefaultLoadLimit,
		loadWindow: DefaultLoadWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(withRequestID, s.withLogging, withRecovery, withCORS)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)

		// Playlists
		r.Group(func(r chi.Router) {
			r.Use(loadRateLimit(s.loadLimit, s.loadWindow))
			r.Post("/playlists/load", s.handleLoadPlaylist)
			r.Post("/playlists/upload", s.handleUploadPlaylist)
			r.Post("/playlists", s.handleAddPlaylist)
		})
		r.Delete("/playlists", s.handleRemovePlaylist)

		// Categories
		r.Get("/categories", s.handleListCategories)
		r.Put("/categories/active", s.handleSelectCategory)

		// Channels
		r.Get("/channels", s.handleListChannels)
		r.Get("/channels/{id}", s.handleGetChannel)
		r.Get("/channels/{id}/epg", s.handleChannelEPG)
		r.Post("/channels/{id}/select", s.handleSelectChannel)
		r.Post("/channels/{id}/play", s.handlePlayChannel)

		// Player
		r.Get("/player", s.handlePlayerStatus)
		r.Post("/player/stop", s.handleStopPlayer)

		// Profiles
		r.Get("/profiles", s.handleListProfiles)
		r.Post("/profiles", s.handleCreateProfile)
		r.Patch("/profiles/{id}", s.handleRenameProfile)
		r.Delete("/profiles/{id}", s.handleDeleteProfile)
		r.Post("/profiles/{id}/activate", s.handleActivateProfile)

		// Settings
		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handleUpdateSettings)

		// Docs
		r.Get("/docs", handleSwaggerUI)
		r.Get("/docs/openapi.yaml", handleOpenAPISpec)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, r, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, r, http.StatusMethodNotAllowed, fmt.Errorf("%s not allowed on %s", r.Method, r.URL.Path))
	})
	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("server shutdown")
		}
	}()

	s.logger.Info().Str("event", "server.listening").Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.viewer.Snapshot())
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Matrix IPTV API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box;overflow-y:scroll}*,*:before,*:after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/docs/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
    });
  </script>
</body>
</html>`
