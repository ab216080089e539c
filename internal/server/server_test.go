package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/matrixiptv/internal/fetcher"
	"github.com/voyagen/matrixiptv/internal/models"
	"github.com/voyagen/matrixiptv/internal/player"
	"github.com/voyagen/matrixiptv/internal/profile"
	"github.com/voyagen/matrixiptv/internal/service"
	"github.com/voyagen/matrixiptv/internal/store"
)

const guideXML = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <programme channel="tele.1" start="20250101 0800" stop="20250101 0900">
    <title>Noticias</title><desc>Morning news</desc>
  </programme>
</tv>`

type testEnv struct {
	srv      *Server
	viewer   *service.Viewer
	profiles *profile.Store
	upstream *httptest.Server
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	mux := http.NewServeMux()
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	mux.HandleFunc("/list.m3u", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "#EXTM3U x-tvg-url=\"%s/guide.xml\"\n"+
			"#EXTINF:-1 tvg-id=\"tele.1\" group-title=\"Telemundo\",Telemundo HD\nhttp://s/1\n"+
			"#EXTINF:-1 group-title=\"Brasil\",Globo\nhttp://s/2\n"+
			"#EXTINF:-1 group-title=\"News/24\",Canal A/B\nhttp://s/3\n", upstream.URL)
	})
	mux.HandleFunc("/plain.m3u", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n#EXTINF:-1 group-title=\"Peru\",Latina\nhttp://s/p\n")
	})
	mux.HandleFunc("/empty.m3u", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n")
	})
	mux.HandleFunc("/guide.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, guideXML)
	})

	profiles, err := profile.Open(context.Background(), store.NewMemory())
	require.NoError(t, err)
	dispatcher := player.NewDispatcher(nil, nil)
	v := service.NewViewer(fetcher.NewClient("test", 5*time.Second), profiles, dispatcher)
	t.Cleanup(v.Close)

	return &testEnv{
		srv:      New(v, profiles, dispatcher, opts...),
		viewer:   v,
		profiles: profiles,
		upstream: upstream,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.ServeHTTP(rr, req)
	return rr
}

// load points the viewer at /list.m3u and waits for its guide.
func (e *testEnv) load(t *testing.T) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/playlists/load", fmt.Sprintf(`{"url":%q}`, e.upstream.URL+"/list.m3u"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	e.viewer.Wait()
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertAPIError(t *testing.T, rr *httptest.ResponseRecorder, status int) APIError {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	apiErr := decode[APIError](t, rr)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, http.StatusText(status), apiErr.Error)
	return apiErr
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(HeaderRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rr := httptest.NewRecorder()
	env.srv.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(HeaderRequestID))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodOptions, "/api/playlists/load", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	assertAPIError(t, env.do(t, http.MethodGet, "/api/nope", ""), http.StatusNotFound)
	assertAPIError(t, env.do(t, http.MethodDelete, "/api/state", ""), http.StatusMethodNotAllowed)
}

func TestStateStartsEmpty(t *testing.T) {
	env := newTestEnv(t)
	snap := decode[service.Snapshot](t, env.do(t, http.MethodGet, "/api/state", ""))
	assert.Equal(t, service.StateEmpty, snap.State)
	assert.Equal(t, env.profiles.ActiveProfileID(), snap.ProfileID)
}

func TestLoadPlaylist(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	snap := decode[service.Snapshot](t, env.do(t, http.MethodGet, "/api/state", ""))
	assert.Equal(t, service.StateLoaded, snap.State)
	assert.Equal(t, 3, snap.ChannelCount)
	assert.Equal(t, "Loaded 3 channels. Loaded EPG for 1 channels.", snap.Message)
	assert.Equal(t, 1, snap.EPGChannels)

	cats := decode[categoriesResponse](t, env.do(t, http.MethodGet, "/api/categories", ""))
	assert.Equal(t, []string{"BRAZIL", "News/24", "Univisión/Unimas/Telemundo"}, cats.Categories)
	assert.Empty(t, cats.Active)
}

func TestLoadPlaylistValidation(t *testing.T) {
	env := newTestEnv(t)

	apiErr := assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/load", `{bad`), http.StatusBadRequest)
	assert.Contains(t, apiErr.Detail, "invalid JSON")

	apiErr = assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/load", `{"url":""}`), http.StatusBadRequest)
	assert.Equal(t, "url is required", apiErr.Detail)

	apiErr = assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/load", `{"url":"ftp://x/list.m3u"}`), http.StatusBadRequest)
	assert.Contains(t, apiErr.Detail, "http or https")
}

func TestLoadPlaylistUpstreamErrors(t *testing.T) {
	env := newTestEnv(t)

	body := fmt.Sprintf(`{"url":%q}`, env.upstream.URL+"/missing.m3u")
	apiErr := assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/load", body), http.StatusBadGateway)
	assert.Equal(t, "HTTP 404", apiErr.Detail)
	snap := env.viewer.Snapshot()
	assert.Equal(t, service.StateFailed, snap.State)
	assert.Equal(t, "Failed to load playlist: HTTP 404", snap.Message)

	body = fmt.Sprintf(`{"url":%q}`, env.upstream.URL+"/empty.m3u")
	assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/load", body), http.StatusUnprocessableEntity)
	assert.Equal(t, "No channels found in the playlist.", env.viewer.Snapshot().Message)
}

func TestUploadPlaylist(t *testing.T) {
	env := newTestEnv(t)

	assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/upload", ""), http.StatusBadRequest)
	assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists/upload", "not a playlist"), http.StatusUnprocessableEntity)

	rr := env.do(t, http.MethodPost, "/api/playlists/upload", "#EXTM3U\n#EXTINF:-1,Uploaded\nhttp://u/1\n")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	snap := decode[service.Snapshot](t, rr)
	assert.Equal(t, 1, snap.ChannelCount)
	require.NotNil(t, snap.Source)
	assert.Equal(t, models.SourceUpload, snap.Source.Kind)
	assert.Equal(t, "Loaded 1 channels. No EPG URL found in playlist header.", snap.Message)
}

func TestAddAndRemovePlaylist(t *testing.T) {
	env := newTestEnv(t)
	listURL := env.upstream.URL + "/list.m3u"

	body := fmt.Sprintf(`{"url":%q}`, env.upstream.URL+"/missing.m3u")
	assertAPIError(t, env.do(t, http.MethodPost, "/api/playlists", body), http.StatusBadGateway)
	p, _ := env.profiles.ActiveProfile()
	assert.Empty(t, p.Playlists, "failed loads are not saved")

	rr := env.do(t, http.MethodPost, "/api/playlists", fmt.Sprintf(`{"url":%q}`, listURL))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	env.viewer.Wait()
	resp := decode[playlistResponse](t, rr)
	assert.Equal(t, []string{listURL}, resp.Playlists)
	assert.Equal(t, 3, resp.State.ChannelCount)

	assertAPIError(t, env.do(t, http.MethodDelete, "/api/playlists", ""), http.StatusBadRequest)
	rr = env.do(t, http.MethodDelete, "/api/playlists?url="+listURL, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	p, _ = env.profiles.ActiveProfile()
	assert.Empty(t, p.Playlists)
}

func TestChannelsAndCategories(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	list := decode[channelListResponse](t, env.do(t, http.MethodGet, "/api/channels", ""))
	assert.Equal(t, 3, list.Total)

	rr := env.do(t, http.MethodPut, "/api/categories/active", `{"category":"BRAZIL"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "BRAZIL", decode[categoriesResponse](t, rr).Active)

	list = decode[channelListResponse](t, env.do(t, http.MethodGet, "/api/channels", ""))
	require.Equal(t, 1, list.Total, "the list follows the active category")
	assert.Equal(t, "Globo", list.Channels[0].Name)
	assert.Equal(t, "BRAZIL", list.Category)

	rr = env.do(t, http.MethodPut, "/api/categories/active", `{"category":"BRAZIL"}`)
	assert.Empty(t, decode[categoriesResponse](t, rr).Active, "same category toggles off")

	list = decode[channelListResponse](t, env.do(t, http.MethodGet, "/api/channels?search=TELE", ""))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Telemundo HD-0", list.Channels[0].ID)

	list = decode[channelListResponse](t, env.do(t, http.MethodGet, "/api/channels?category=ITALY", ""))
	assert.Zero(t, list.Total)
	assert.NotNil(t, list.Channels)
}

func TestChannelEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	ch := decode[models.CategorizedChannel](t, env.do(t, http.MethodGet, "/api/channels/Telemundo%20HD-0", ""))
	assert.Equal(t, "tele.1", ch.TvgID)
	assert.Equal(t, []string{"Univisión/Unimas/Telemundo"}, ch.Groups)

	ch = decode[models.CategorizedChannel](t, env.do(t, http.MethodGet, "/api/channels/Canal%20A%2FB-2", ""))
	assert.Equal(t, "Canal A/B", ch.Name)

	epg := decode[epgResponse](t, env.do(t, http.MethodGet, "/api/channels/Telemundo%20HD-0/epg", ""))
	assert.Equal(t, []models.EPGProgram{
		{Title: "Noticias", Time: "20250101 0800 - 20250101 0900", Desc: "Morning news"},
	}, epg.Programs)

	rr := env.do(t, http.MethodGet, "/api/channels/Globo-1/epg", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"channel_id":"Globo-1","programs":[]}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/channels/Globo-1/select", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Globo-1", env.viewer.Snapshot().SelectedChannelID)

	assertAPIError(t, env.do(t, http.MethodGet, "/api/channels/Nope-9", ""), http.StatusNotFound)
	assertAPIError(t, env.do(t, http.MethodGet, "/api/channels/Nope-9/epg", ""), http.StatusNotFound)
	assertAPIError(t, env.do(t, http.MethodPost, "/api/channels/Nope-9/select", ""), http.StatusNotFound)
}

func TestPlayback(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	status := decode[playerStatusResponse](t, env.do(t, http.MethodGet, "/api/player", ""))
	assert.Nil(t, status.NowPlaying)
	assert.False(t, status.ExternalAvailable)

	rr := env.do(t, http.MethodPost, "/api/channels/Globo-1/play", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	np := decode[player.NowPlaying](t, rr)
	assert.Equal(t, player.TargetEmbedded, np.Target)
	assert.Equal(t, "LIVE: Globo", np.Title)

	status = decode[playerStatusResponse](t, env.do(t, http.MethodGet, "/api/player", ""))
	require.NotNil(t, status.NowPlaying)
	assert.Equal(t, "Globo-1", status.NowPlaying.ChannelID)

	rr = env.do(t, http.MethodPatch, "/api/settings", `{"player_preference":"vlc"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assertAPIError(t, env.do(t, http.MethodPost, "/api/channels/Globo-1/play", ""), http.StatusServiceUnavailable)

	rr = env.do(t, http.MethodPost, "/api/player/stop", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	status = decode[playerStatusResponse](t, env.do(t, http.MethodGet, "/api/player", ""))
	assert.Nil(t, status.NowPlaying)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	list := decode[profileListResponse](t, env.do(t, http.MethodGet, "/api/profiles", ""))
	require.Len(t, list.Profiles, 1)
	assert.Equal(t, profile.DefaultProfileName, list.Profiles[0].Name)
	defaultID := list.ActiveProfileID

	rr := env.do(t, http.MethodPost, "/api/profiles", `{"name":"  Kids  "}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	kids := decode[models.UserProfile](t, rr)
	assert.Equal(t, "Kids", kids.Name)
	assert.Equal(t, models.DefaultSettings(), kids.Settings)

	rr = env.do(t, http.MethodPatch, "/api/profiles/"+kids.ID, `{"name":"Children"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Children", decode[models.UserProfile](t, rr).Name)
	assertAPIError(t, env.do(t, http.MethodPatch, "/api/profiles/missing", `{"name":"x"}`), http.StatusNotFound)

	// Give the new profile a saved playlist so activation auto-loads it.
	require.NoError(t, env.profiles.SetActiveProfile(ctx, kids.ID))
	require.NoError(t, env.profiles.AddPlaylist(ctx, env.upstream.URL+"/plain.m3u"))
	require.NoError(t, env.profiles.SetActiveProfile(ctx, defaultID))

	rr = env.do(t, http.MethodPost, "/api/profiles/"+kids.ID+"/activate", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	snap := decode[service.Snapshot](t, rr)
	assert.Equal(t, kids.ID, snap.ProfileID)
	assert.Equal(t, 1, snap.ChannelCount)
	assert.Equal(t, []string{"PERU"}, snap.Categories)

	assertAPIError(t, env.do(t, http.MethodPost, "/api/profiles/missing/activate", ""), http.StatusNotFound)

	rr = env.do(t, http.MethodDelete, "/api/profiles/"+kids.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, defaultID, env.profiles.ActiveProfileID(), "active falls back to the remaining profile")
	snap = env.viewer.Snapshot()
	assert.Equal(t, service.StateEmpty, snap.State, "the viewer resets for the new active profile")
	assert.Equal(t, defaultID, snap.ProfileID)

	assertAPIError(t, env.do(t, http.MethodDelete, "/api/profiles/"+kids.ID, ""), http.StatusNotFound)
}

func TestActivateProfileWithFailingPlaylist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.profiles.CreateProfile(ctx, "Broken")
	require.NoError(t, err)
	require.NoError(t, env.profiles.SetActiveProfile(ctx, id))
	require.NoError(t, env.profiles.AddPlaylist(ctx, env.upstream.URL+"/missing.m3u"))
	require.NoError(t, env.profiles.SetActiveProfile(ctx, env.profiles.Profiles()[0].ID))

	rr := env.do(t, http.MethodPost, "/api/profiles/"+id+"/activate", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	snap := decode[service.Snapshot](t, rr)
	assert.Equal(t, id, snap.ProfileID)
	assert.Equal(t, service.StateFailed, snap.State)
	assert.Equal(t, "Failed to load playlist: HTTP 404", snap.Message)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	settings := decode[models.ProfileSettings](t, env.do(t, http.MethodGet, "/api/settings", ""))
	assert.Equal(t, models.DefaultSettings(), settings)

	rr := env.do(t, http.MethodPatch, "/api/settings", `{"theme":"light","auto_refresh":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	settings = decode[models.ProfileSettings](t, rr)
	assert.Equal(t, models.ThemeLight, settings.Theme)
	assert.True(t, settings.AutoRefresh)
	assert.Equal(t, models.PlayerInternal, settings.PlayerPreference)

	assertAPIError(t, env.do(t, http.MethodPatch, "/api/settings", `{"theme":"neon"}`), http.StatusBadRequest)
	assertAPIError(t, env.do(t, http.MethodPatch, "/api/settings", `{"player_preference":"mpv"}`), http.StatusBadRequest)
	assert.Equal(t, models.ThemeLight, env.profiles.ActiveSettings().Theme)
}

func TestLoadRateLimit(t *testing.T) {
	env := newTestEnv(t, WithLoadLimit(1, time.Minute))
	body := fmt.Sprintf(`{"url":%q}`, env.upstream.URL+"/plain.m3u")

	rr := env.do(t, http.MethodPost, "/api/playlists/load", body)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/playlists/load", body)
	assertAPIError(t, rr, http.StatusTooManyRequests)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = env.do(t, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusOK, rr.Code, "read endpoints are not limited")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	rr := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "matrixiptv_playlist_loads_total")
	assert.Contains(t, rr.Body.String(), "matrixiptv_channels_loaded")
}

func TestDocs(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/docs/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "openapi: 3.0.3")

	rr = env.do(t, http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "swagger-ui")
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrChannelNotFound, http.StatusNotFound},
		{profile.ErrProfileNotFound, http.StatusNotFound},
		{profile.ErrInvalidSettings, http.StatusBadRequest},
		{profile.ErrNoActiveProfile, http.StatusConflict},
		{service.ErrSuperseded, http.StatusConflict},
		{service.ErrEmptyPlaylist, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", fetcher.ErrParseFailure), http.StatusUnprocessableEntity},
		{&fetcher.StatusError{StatusCode: 500}, http.StatusBadGateway},
		{player.ErrExternalPlayerUnavailable, http.StatusServiceUnavailable},
		{service.ErrClosed, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}
