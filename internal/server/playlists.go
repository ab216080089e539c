package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voyagen/matrixiptv/internal/models"
	"github.com/voyagen/matrixiptv/internal/service"
)

type playlistRequest struct {
	URL string `json:"url"`
}

type playlistResponse struct {
	State     service.Snapshot `json:"state"`
	Playlists []string         `json:"playlists"`
}

func (s *Server) savedPlaylists() []string {
	if p, ok := s.profiles.ActiveProfile(); ok {
		return p.Playlists
	}
	return []string{}
}

func (s *Server) handleLoadPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := validPlaylistURL(req.URL); err != nil {
		writeErr(w, r, http.StatusBadRequest, err)
		return
	}

	if _, err := s.viewer.LoadURL(r.Context(), req.URL); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.viewer.Snapshot())
}

func (s *Server) handleUploadPlaylist(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeErr(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("read upload: %w", err))
		return
	}
	if len(body) == 0 {
		writeErr(w, r, http.StatusBadRequest, fmt.Errorf("playlist body is empty"))
		return
	}

	if _, err := s.viewer.LoadText(r.Context(), string(body), models.Source{Kind: models.SourceUpload}); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.viewer.Snapshot())
}

func (s *Server) handleAddPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := validPlaylistURL(req.URL); err != nil {
		writeErr(w, r, http.StatusBadRequest, err)
		return
	}

	loaded, err := s.viewer.AddPlaylist(r.Context(), req.URL)
	if err != nil {
		if loaded {
			writeErr(w, r, http.StatusInternalServerError, err)
			return
		}
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, playlistResponse{
		State:     s.viewer.Snapshot(),
		Playlists: s.savedPlaylists(),
	})
}

func (s *Server) handleRemovePlaylist(w http.ResponseWriter, r *http.Request) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		writeErr(w, r, http.StatusBadRequest, fmt.Errorf("url parameter is required"))
		return
	}
	if err := s.viewer.RemovePlaylist(r.Context(), u); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeNoContent(w)
}
