package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/matrixiptv/internal/category"
	"github.com/voyagen/matrixiptv/internal/fetcher"
	xlog "github.com/voyagen/matrixiptv/internal/log"
	"github.com/voyagen/matrixiptv/internal/metrics"
	"github.com/voyagen/matrixiptv/internal/models"
	"github.com/voyagen/matrixiptv/internal/player"
)

// State is the playlist lifecycle.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Status messages shown to the user.
const (
	msgNoEPGURL      = "No EPG URL found in playlist header."
	msgLoadingEPG    = "Loading EPG..."
	msgEPGFailed     = "Failed to load EPG."
	msgNoChannels    = "No channels found in the playlist."
	msgFileFailed    = "Failed to parse M3U file."
	msgPlaylistError = "Failed to load playlist: "
)

var (
	// ErrSuperseded is returned when a newer load started before this one finished.
	ErrSuperseded = errors.New("load superseded by a newer request")
	// ErrChannelNotFound is returned for an id not in the current playlist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("viewer closed")
)

// Fetcher retrieves playlist and guide documents.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchEPG(ctx context.Context, url string) (models.EPGIndex, error)
}

// Profiles is the slice of the profile store the viewer depends on.
type Profiles interface {
	ActiveProfile() (models.UserProfile, bool)
	ActiveSettings() models.ProfileSettings
	SetActiveProfile(ctx context.Context, id string) error
	AddPlaylist(ctx context.Context, url string) error
	RemovePlaylist(ctx context.Context, url string) error
}

// Player starts and stops playback.
type Player interface {
	Play(ctx context.Context, ch models.CategorizedChannel, preference string) (player.NowPlaying, error)
	Stop(ctx context.Context) error
}

// GuideCache stores indexed guides between fetches.
type GuideCache interface {
	Get(ctx context.Context, url string) (models.EPGIndex, bool)
	Put(ctx context.Context, url string, idx models.EPGIndex) error
}

// Filter narrows the channel list. Empty fields match everything.
type Filter struct {
	Category string
	Search   string
}

// Snapshot is a read-only view of the viewer state.
type Snapshot struct {
	State             State          `json:"state"`
	Message           string         `json:"message"`
	Source            *models.Source `json:"source,omitempty"`
	ChannelCount      int            `json:"channel_count"`
	Categories        []string       `json:"categories"`
	SelectedChannelID string         `json:"selected_channel_id,omitempty"`
	ActiveCategory    string         `json:"active_category,omitempty"`
	Search            string         `json:"search,omitempty"`
	EPGURL            string         `json:"epg_url,omitempty"`
	EPGChannels       int            `json:"epg_channels"`
	PlaylistLoading   bool           `json:"playlist_loading"`
	EPGLoading        bool           `json:"epg_loading"`
	ProfileID         string         `json:"profile_id,omitempty"`
}

// viewState is replaced wholesale under Viewer.mu; its slices and maps are
// never mutated after publication.
type viewState struct {
	status         State
	message        string
	source         *models.Source
	channels       []models.CategorizedChannel
	byID           map[string]int
	categories     []string
	epgURL         string
	epg            models.EPGIndex
	epgLoading     bool
	selected       string
	activeCategory string
	search         string
	profileID      string
}

func emptyState(profileID string) viewState {
	return viewState{
		status:     StateEmpty,
		channels:   []models.CategorizedChannel{},
		byID:       map[string]int{},
		categories: []string{},
		epg:        models.EPGIndex{},
		profileID:  profileID,
	}
}

// Viewer owns the loaded playlist, its guide and the user's selection. Loads
// run outside the lock and only the most recently started one is applied.
type Viewer struct {
	fetch    Fetcher
	profiles Profiles
	player   Player
	guides   GuideCache
	mapper   *category.Mapper
	logger   zerolog.Logger

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.RWMutex
	state   viewState
	loadSeq uint64
	epgSeq  uint64
	closed  bool
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithGuideCache caches indexed guides by URL.
func WithGuideCache(c GuideCache) Option {
	return func(v *Viewer) { v.guides = c }
}

// WithMapper overrides the category table.
func WithMapper(m *category.Mapper) Option {
	return func(v *Viewer) { v.mapper = m }
}

// NewViewer creates an empty viewer.
func NewViewer(f Fetcher, profiles Profiles, p Player, opts ...Option) *Viewer {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		fetch:    f,
		profiles: profiles,
		player:   p,
		mapper:   category.Default(),
		logger:   xlog.WithComponent("viewer"),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.state = emptyState(v.activeProfileID())
	return v
}

func (v *Viewer) activeProfileID() string {
	if v.profiles == nil {
		return ""
	}
	if p, ok := v.profiles.ActiveProfile(); ok {
		return p.ID
	}
	return ""
}

// LoadURL fetches and applies the playlist at url. It reports whether the
// playlist had channels and was applied.
func (v *Viewer) LoadURL(ctx context.Context, url string) (bool, error) {
	src := models.Source{Kind: models.SourceURL, Location: url}
	return v.load(ctx, src, func(ctx context.Context) (string, error) {
		return v.fetch.FetchText(ctx, url)
	})
}

// LoadFile reads and applies a local playlist file.
func (v *Viewer) LoadFile(ctx context.Context, path string) (bool, error) {
	src := models.Source{Kind: models.SourceFile, Location: path}
	return v.load(ctx, src, func(context.Context) (string, error) {
		return fetcher.ReadFile(path)
	})
}

// LoadText applies playlist text that is already in memory, such as an upload.
func (v *Viewer) LoadText(ctx context.Context, text string, src models.Source) (bool, error) {
	if src.Kind == "" {
		src.Kind = models.SourceUpload
	}
	return v.load(ctx, src, func(context.Context) (string, error) {
		return text, nil
	})
}

func (v *Viewer) load(ctx context.Context, src models.Source, get func(context.Context) (string, error)) (bool, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false, ErrClosed
	}
	v.loadSeq++
	v.epgSeq++
	seq := v.loadSeq
	next := v.state
	next.status = StateLoading
	next.message = ""
	v.state = next
	v.mu.Unlock()

	logger := xlog.WithContext(ctx, v.logger).With().
		Uint64("seq", seq).
		Str("source", src.Kind).
		Str("location", src.Location).
		Logger()
	logger.Info().Str("event", "playlist.load_start").Msg("loading playlist")

	text, err := get(ctx)
	if err != nil {
		msg := msgPlaylistError + err.Error()
		if src.Kind == models.SourceFile {
			msg = msgFileFailed
		}
		if !v.applyFailure(seq, src, msg) {
			return false, v.discarded(logger)
		}
		metrics.RecordPlaylistLoad(src.Kind, metrics.OutcomeError)
		logger.Warn().Err(err).Str("event", "playlist.failed").Msg("playlist load failed")
		return false, err
	}

	res := LoadWith(v.mapper, text)
	if !res.Success {
		if !v.applyFailure(seq, src, msgNoChannels) {
			return false, v.discarded(logger)
		}
		metrics.RecordPlaylistLoad(src.Kind, metrics.OutcomeEmpty)
		logger.Warn().Str("event", "playlist.failed").Msg("playlist has no channels")
		return false, ErrEmptyPlaylist
	}

	epgSeq, ok := v.applySuccess(seq, src, res)
	if !ok {
		return false, v.discarded(logger)
	}
	metrics.RecordPlaylistLoad(src.Kind, metrics.OutcomeSuccess)
	metrics.SetChannelsLoaded(len(res.Channels))
	logger.Info().
		Str("event", "playlist.loaded").
		Int("channels", len(res.Channels)).
		Int("categories", len(res.Categories)).
		Str("epg_url", res.EPGURL).
		Msg("playlist loaded")

	if res.EPGURL != "" {
		go v.loadEPG(seq, epgSeq, res.EPGURL)
	}
	return true, nil
}

func (v *Viewer) discarded(logger zerolog.Logger) error {
	metrics.RecordStaleDiscard("playlist")
	logger.Info().Str("event", "playlist.stale_discarded").Msg("newer load in progress, result discarded")
	return ErrSuperseded
}

// applyFailure publishes a failed load unless a newer load has started.
func (v *Viewer) applyFailure(seq uint64, src models.Source, msg string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.loadSeq || v.closed {
		return false
	}
	next := emptyState(v.state.profileID)
	next.status = StateFailed
	next.message = msg
	next.source = withLoadedAt(src)
	v.state = next
	return true
}

// applySuccess publishes res and returns the guide sequence number for its EPG fetch.
func (v *Viewer) applySuccess(seq uint64, src models.Source, res Result) (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.loadSeq || v.closed {
		return 0, false
	}

	next := emptyState(v.state.profileID)
	next.status = StateLoaded
	next.source = withLoadedAt(src)
	next.channels = res.Channels
	next.categories = res.Categories
	next.epgURL = res.EPGURL
	for i, ch := range res.Channels {
		next.byID[ch.ID] = i
	}

	next.message = fmt.Sprintf("Loaded %d channels. ", len(res.Channels))
	if res.EPGURL == "" {
		next.message += msgNoEPGURL
	} else {
		next.message += msgLoadingEPG
		next.epgLoading = true
		v.epgSeq++
		// Added under mu so Close, which sets closed under mu before waiting, never races it.
		v.wg.Add(1)
	}
	v.state = next
	return v.epgSeq, true
}

func withLoadedAt(src models.Source) *models.Source {
	now := time.Now().UTC()
	src.LoadedAt = &now
	return &src
}

// loadEPG fetches the guide for a loaded playlist and applies it only if
// neither a newer playlist load nor a newer guide fetch has started.
func (v *Viewer) loadEPG(loadSeq, epgSeq uint64, url string) {
	defer v.wg.Done()
	ctx := v.bgCtx
	logger := v.logger.With().Uint64("seq", loadSeq).Str("epg_url", url).Logger()

	idx, cached := v.cachedGuide(ctx, url)
	var err error
	if !cached {
		idx, err = v.fetch.FetchEPG(ctx, url)
		if err == nil && v.guides != nil {
			if perr := v.guides.Put(ctx, url, idx); perr != nil {
				logger.Warn().Err(perr).Msg("guide cache: put")
			}
		}
	}

	v.mu.Lock()
	if epgSeq != v.epgSeq || loadSeq != v.loadSeq || v.closed {
		v.mu.Unlock()
		metrics.RecordStaleDiscard("epg")
		logger.Info().Str("event", "epg.stale_discarded").Msg("guide result discarded")
		return
	}
	next := v.state
	next.epgLoading = false
	if err != nil {
		next.message = strings.Replace(next.message, msgLoadingEPG, msgEPGFailed, 1)
	} else {
		next.epg = idx
		next.message = strings.Replace(next.message, msgLoadingEPG,
			fmt.Sprintf("Loaded EPG for %d channels.", idx.ChannelCount()), 1)
	}
	v.state = next
	v.mu.Unlock()

	if err != nil {
		metrics.RecordEPGLoad(metrics.OutcomeError, 0)
		logger.Warn().Err(err).Str("event", "epg.failed").Msg("guide load failed")
		return
	}
	metrics.RecordEPGLoad(metrics.OutcomeSuccess, idx.ChannelCount())
	logger.Info().
		Str("event", "epg.loaded").
		Int("channels", idx.ChannelCount()).
		Bool("cached", cached).
		Msg("guide loaded")
}

func (v *Viewer) cachedGuide(ctx context.Context, url string) (models.EPGIndex, bool) {
	if v.guides == nil {
		return nil, false
	}
	return v.guides.Get(ctx, url)
}

// LoadActiveProfile resets to Empty and loads the active profile's first
// saved playlist, if it has one.
func (v *Viewer) LoadActiveProfile(ctx context.Context) (bool, error) {
	profileID := ""
	var first string
	if v.profiles != nil {
		if p, ok := v.profiles.ActiveProfile(); ok {
			profileID = p.ID
			if len(p.Playlists) > 0 {
				first = p.Playlists[0]
			}
		}
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false, ErrClosed
	}
	v.loadSeq++
	v.epgSeq++
	v.state = emptyState(profileID)
	v.mu.Unlock()
	metrics.SetChannelsLoaded(0)

	v.logger.Info().Str("event", "profile.activated").Str("profile_id", profileID).Msg("viewer reset for profile")
	if first == "" {
		return false, nil
	}
	return v.LoadURL(ctx, first)
}

// SwitchProfile activates id and auto-loads its first playlist.
func (v *Viewer) SwitchProfile(ctx context.Context, id string) (bool, error) {
	if err := v.profiles.SetActiveProfile(ctx, id); err != nil {
		return false, err
	}
	return v.LoadActiveProfile(ctx)
}

// AddPlaylist loads url and, when it has channels, saves it to the active profile.
func (v *Viewer) AddPlaylist(ctx context.Context, url string) (bool, error) {
	ok, err := v.LoadURL(ctx, url)
	if !ok {
		return false, err
	}
	if err := v.profiles.AddPlaylist(ctx, url); err != nil {
		return true, fmt.Errorf("save playlist: %w", err)
	}
	return true, nil
}

// RemovePlaylist drops url from the active profile. The loaded channels stay.
func (v *Viewer) RemovePlaylist(ctx context.Context, url string) error {
	return v.profiles.RemovePlaylist(ctx, url)
}

// Snapshot returns the current state.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.RLock()
	s := v.state
	v.mu.RUnlock()
	return Snapshot{
		State:             s.status,
		Message:           s.message,
		Source:            s.source,
		ChannelCount:      len(s.channels),
		Categories:        s.categories,
		SelectedChannelID: s.selected,
		ActiveCategory:    s.activeCategory,
		Search:            s.search,
		EPGURL:            s.epgURL,
		EPGChannels:       s.epg.ChannelCount(),
		PlaylistLoading:   s.status == StateLoading,
		EPGLoading:        s.epgLoading,
		ProfileID:         s.profileID,
	}
}

// Categories returns the sorted categories of the loaded playlist.
func (v *Viewer) Categories() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.categories
}

// Channels returns the loaded channels matching f, in playlist order.
func (v *Viewer) Channels(f Filter) []models.CategorizedChannel {
	v.mu.RLock()
	channels := v.state.channels
	v.mu.RUnlock()
	return filterChannels(channels, f)
}

// Visible returns the channels matching the current category and search.
func (v *Viewer) Visible() []models.CategorizedChannel {
	v.mu.RLock()
	s := v.state
	v.mu.RUnlock()
	return filterChannels(s.channels, Filter{Category: s.activeCategory, Search: s.search})
}

func filterChannels(channels []models.CategorizedChannel, f Filter) []models.CategorizedChannel {
	search := strings.ToLower(f.Search)
	out := make([]models.CategorizedChannel, 0, len(channels))
	for _, ch := range channels {
		if f.Category != "" && !ch.InGroup(f.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ch.Name), search) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Channel returns the channel with id.
func (v *Viewer) Channel(id string) (models.CategorizedChannel, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.state.byID[id]
	if !ok {
		return models.CategorizedChannel{}, false
	}
	return v.state.channels[i], true
}

// Selected returns the selected channel.
func (v *Viewer) Selected() (models.CategorizedChannel, bool) {
	v.mu.RLock()
	id := v.state.selected
	v.mu.RUnlock()
	if id == "" {
		return models.CategorizedChannel{}, false
	}
	return v.Channel(id)
}

// SelectChannel marks id as selected.
func (v *Viewer) SelectChannel(id string) (models.CategorizedChannel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i, ok := v.state.byID[id]
	if !ok {
		return models.CategorizedChannel{}, ErrChannelNotFound
	}
	next := v.state
	next.selected = id
	v.state = next
	return v.state.channels[i], nil
}

// SelectCategory sets the active category, clearing the selection and search.
// Selecting the active category again, or "", shows all channels. It returns
// the resulting active category.
func (v *Viewer) SelectCategory(cat string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.state
	if cat == next.activeCategory {
		cat = ""
	}
	next.activeCategory = cat
	next.selected = ""
	next.search = ""
	v.state = next
	return cat
}

// SetSearch sets the name filter.
func (v *Viewer) SetSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.state
	next.search = term
	v.state = next
}

// ProgramsFor returns the guide entries for channel id, joined on its tvg-id.
func (v *Viewer) ProgramsFor(id string) ([]models.EPGProgram, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.state.byID[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	progs := v.state.epg.Lookup(v.state.channels[i].TvgID)
	if progs == nil {
		return []models.EPGProgram{}, nil
	}
	return progs, nil
}

// Play selects id and hands it to the player using the active profile's preference.
func (v *Viewer) Play(ctx context.Context, id string) (player.NowPlaying, error) {
	ch, err := v.SelectChannel(id)
	if err != nil {
		return player.NowPlaying{}, err
	}
	pref := models.PlayerInternal
	if v.profiles != nil {
		pref = v.profiles.ActiveSettings().PlayerPreference
	}
	return v.player.Play(ctx, ch, pref)
}

// Stop ends playback.
func (v *Viewer) Stop(ctx context.Context) error {
	return v.player.Stop(ctx)
}

// RunAutoRefresh reloads the current URL playlist every interval while the
// active profile has auto-refresh enabled. It blocks until ctx is done.
func (v *Viewer) RunAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh(ctx)
		}
	}
}

func (v *Viewer) refresh(ctx context.Context) {
	if v.profiles == nil || !v.profiles.ActiveSettings().AutoRefresh {
		return
	}
	v.mu.RLock()
	src := v.state.source
	status := v.state.status
	v.mu.RUnlock()
	if src == nil || src.Kind != models.SourceURL || status == StateLoading {
		return
	}
	v.logger.Info().Str("event", "playlist.auto_refresh").Str("location", src.Location).Msg("auto-refresh triggered")
	if _, err := v.LoadURL(ctx, src.Location); err != nil && !errors.Is(err, ErrSuperseded) {
		v.logger.Warn().Err(err).Msg("auto-refresh failed")
	}
}

// Wait blocks until background guide fetches have finished.
func (v *Viewer) Wait() {
	v.wg.Wait()
}

// Close cancels background work and waits for it. Later loads fail with ErrClosed.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.bgCancel()
	v.wg.Wait()
}
