package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/voyagen/matrixiptv/internal/fetcher"
	xlog "github.com/voyagen/matrixiptv/internal/log"
	"github.com/voyagen/matrixiptv/internal/player"
	"github.com/voyagen/matrixiptv/internal/profile"
	"github.com/voyagen/matrixiptv/internal/service"
)

// maxBodyBytes bounds JSON bodies; uploads use maxUploadBytes.
const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 64 << 20
)

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		xlog.FromContext(r.Context()).Warn().Err(err).Msg("writeJSON")
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		xlog.FromContext(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, r, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrChannelNotFound),
		errors.Is(err, profile.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrInvalidSettings),
		errors.Is(err, profile.ErrEmptyPlaylistURL):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrNoActiveProfile),
		errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyPlaylist),
		errors.Is(err, fetcher.ErrParseFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetcher.ErrFetchFailure):
		return http.StatusBadGateway
	case errors.Is(err, player.ErrExternalPlayerUnavailable),
		errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainErr(w http.ResponseWriter, r *http.Request, err error) {
	writeErr(w, r, statusFor(err), err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeErr(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return false
	}
	return true
}

// validPlaylistURL accepts absolute http and https URLs.
func validPlaylistURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	if u, err := url.ParseRequestURI(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("url must be a valid http or https URL")
	}
	return nil
}

// pathParam returns a decoded path parameter. Channel ids are derived from
// display names, so they may contain escaped slashes.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
