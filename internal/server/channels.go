package server

import (
	"net/http"

	"github.com/voyagen/matrixiptv/internal/models"
	"github.com/voyagen/matrixiptv/internal/player"
	"github.com/voyagen/matrixiptv/internal/service"
)

type categoriesResponse struct {
	Categories []string `json:"categories"`
	Active     string   `json:"active"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, categoriesResponse{
		Categories: s.viewer.Categories(),
		Active:     s.viewer.Snapshot().ActiveCategory,
	})
}

type selectCategoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request) {
	var req selectCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	active := s.viewer.SelectCategory(req.Category)
	writeJSON(w, r, http.StatusOK, categoriesResponse{
		Categories: s.viewer.Categories(),
		Active:     active,
	})
}

type channelListResponse struct {
	Channels []models.CategorizedChannel `json:"channels"`
	Total    int                         `json:"total"`
	Category string                      `json:"category,omitempty"`
	Search   string                      `json:"search,omitempty"`
}

// handleListChannels filters by the query parameters when either is given and
// otherwise returns the channels visible under the viewer's own filters.
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		channels []models.CategorizedChannel
		filter   service.Filter
	)
	if q.Has("category") || q.Has("search") {
		filter = service.Filter{Category: q.Get("category"), Search: q.Get("search")}
		channels = s.viewer.Channels(filter)
	} else {
		snap := s.viewer.Snapshot()
		filter = service.Filter{Category: snap.ActiveCategory, Search: snap.Search}
		channels = s.viewer.Visible()
	}

	writeJSON(w, r, http.StatusOK, channelListResponse{
		Channels: channels,
		Total:    len(channels),
		Category: filter.Category,
		Search:   filter.Search,
	})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.viewer.Channel(pathParam(r, "id"))
	if !ok {
		writeDomainErr(w, r, service.ErrChannelNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, ch)
}

type epgResponse struct {
	ChannelID string              `json:"channel_id"`
	TvgID     string              `json:"tvg_id,omitempty"`
	Programs  []models.EPGProgram `json:"programs"`
}

func (s *Server) handleChannelEPG(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	progs, err := s.viewer.ProgramsFor(id)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	ch, _ := s.viewer.Channel(id)
	writeJSON(w, r, http.StatusOK, epgResponse{ChannelID: id, TvgID: ch.TvgID, Programs: progs})
}

func (s *Server) handleSelectChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.viewer.SelectChannel(pathParam(r, "id"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ch)
}

func (s *Server) handlePlayChannel(w http.ResponseWriter, r *http.Request) {
	np, err := s.viewer.Play(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, np)
}

type playerStatusResponse struct {
	NowPlaying        *player.NowPlaying `json:"now_playing"`
	ExternalAvailable bool               `json:"external_available"`
}

func (s *Server) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	var resp playerStatusResponse
	if s.player != nil {
		if np, ok := s.player.NowPlaying(); ok {
			resp.NowPlaying = &np
		}
		resp.ExternalAvailable = s.player.ExternalAvailable()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleStopPlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.viewer.Stop(r.Context()); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeNoContent(w)
}
