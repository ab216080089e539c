package server

import (
	"errors"
	"net/http"

	"github.com/voyagen/matrixiptv/internal/models"
	"github.com/voyagen/matrixiptv/internal/service"
)

type profileListResponse struct {
	Profiles        []models.UserProfile `json:"profiles"`
	ActiveProfileID string               `json:"active_profile_id"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, profileListResponse{
		Profiles:        s.profiles.Profiles(),
		ActiveProfileID: s.profiles.ActiveProfileID(),
	})
}

type profileNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	before := s.profiles.ActiveProfileID()
	id, err := s.profiles.CreateProfile(r.Context(), req.Name)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	s.reloadIfActiveChanged(r, before)

	p, _ := s.profiles.Profile(id)
	writeJSON(w, r, http.StatusCreated, p)
}

func (s *Server) handleRenameProfile(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req profileNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.profiles.RenameProfile(r.Context(), id, req.Name); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	p, _ := s.profiles.Profile(id)
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	before := s.profiles.ActiveProfileID()
	if err := s.profiles.DeleteProfile(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	s.reloadIfActiveChanged(r, before)
	writeNoContent(w)
}

// reloadIfActiveChanged resets the viewer when a profile mutation moved the
// active profile. Load failures are reported through the viewer state.
func (s *Server) reloadIfActiveChanged(r *http.Request, before string) {
	if s.profiles.ActiveProfileID() == before {
		return
	}
	if _, err := s.viewer.LoadActiveProfile(r.Context()); err != nil {
		s.logger.Warn().Err(err).Str("event", "profile.autoload_failed").Msg("loading active profile playlist")
	}
}

func (s *Server) handleActivateProfile(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	_, err := s.viewer.SwitchProfile(r.Context(), id)
	// A failed auto-load still leaves the profile switched; the state carries the message.
	if err != nil && (s.profiles.ActiveProfileID() != id || errors.Is(err, service.ErrClosed)) {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.viewer.Snapshot())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.profiles.ActiveSettings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.SettingsUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := s.profiles.UpdateSettings(r.Context(), req)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}
