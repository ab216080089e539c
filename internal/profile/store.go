// Package profile owns the named viewer profiles and persists them through a
// store.Backend.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "github.com/voyagen/matrixiptv/internal/log"
	"github.com/voyagen/matrixiptv/internal/models"
	"github.com/voyagen/matrixiptv/internal/store"
)

// Names given to profiles created without one.
const (
	DefaultProfileName = "Default"
	NewProfileName     = "New Profile"
)

var (
	// ErrProfileNotFound is returned for an unknown profile id.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNoActiveProfile is returned by operations on the active profile when there is none.
	ErrNoActiveProfile = errors.New("no active profile")
	// ErrInvalidSettings is returned when a settings update carries an unknown value.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrEmptyPlaylistURL is returned when adding a blank playlist URL.
	ErrEmptyPlaylistURL = errors.New("playlist url is empty")
)

// Store is the profile state container. All methods are safe for concurrent
// use; every mutation writes the whole document back to the backend before it
// becomes visible.
type Store struct {
	backend store.Backend
	newID   func() string
	logger  zerolog.Logger

	mu       sync.RWMutex
	order    []string
	profiles map[string]models.UserProfile
	activeID string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides how profile ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open rehydrates the store from backend, creating a "Default" profile when
// none exist and picking an active profile when none is set.
func Open(ctx context.Context, backend store.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:  backend,
		newID:    uuid.NewString,
		logger:   xlog.WithComponent("profiles"),
		profiles: make(map[string]models.UserProfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces in-memory state with the persisted document.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := snapshot{profiles: make(map[string]models.UserProfile)}

	raw, err := s.backend.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load profiles: %w", err)
	default:
		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Warn().Err(err).Str("event", "profiles.corrupt").Msg("discarding unreadable profile document")
		} else {
			next.order = doc.State.Profiles.order
			for id, p := range doc.State.Profiles.byID {
				next.profiles[id] = sanitize(id, p)
			}
			if doc.State.ActiveProfileID != nil {
				next.activeID = *doc.State.ActiveProfileID
			}
		}
	}

	changed := false
	if len(next.order) == 0 {
		id := s.newID()
		next.add(newProfile(id, DefaultProfileName))
		next.activeID = id
		changed = true
	}
	if _, ok := next.profiles[next.activeID]; !ok {
		next.activeID = next.order[0]
		changed = true
	}

	if changed {
		if err := s.persist(ctx, next); err != nil {
			return err
		}
	}

	s.order, s.profiles, s.activeID = next.order, next.profiles, next.activeID

	s.logger.Debug().
		Str("event", "profiles.loaded").
		Int("profiles", len(next.order)).
		Str("active", next.activeID).
		Msg("profiles rehydrated")
	return nil
}

// Profiles returns every profile in creation order.
func (s *Store) Profiles() []models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id].Clone())
	}
	return out
}

// Profile returns the profile with id.
func (s *Store) Profile(id string) (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return models.UserProfile{}, false
	}
	return p.Clone(), true
}

// ActiveProfileID returns the active id, or "" when there is none.
func (s *Store) ActiveProfileID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveProfile returns the active profile, or false when none is set.
func (s *Store) ActiveProfile() (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[s.activeID]
	if !ok {
		return models.UserProfile{}, false
	}
	return p.Clone(), true
}

// ActiveSettings returns the active profile's settings, or the defaults.
func (s *Store) ActiveSettings() models.ProfileSettings {
	if p, ok := s.ActiveProfile(); ok {
		return p.Settings
	}
	return models.DefaultSettings()
}

// CreateProfile adds a profile with default settings and returns its id. A
// blank name becomes "New Profile". The new profile becomes active only when
// no profile is active.
func (s *Store) CreateProfile(ctx context.Context, name string) (string, error) {
	var id string
	err := s.mutate(ctx, func(next *snapshot) error {
		name = strings.TrimSpace(name)
		if name == "" {
			name = NewProfileName
		}
		id = s.newID()
		next.add(newProfile(id, name))
		if next.activeID == "" {
			next.activeID = id
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("event", "profiles.created").Str("profile_id", id).Msg("profile created")
	return id, nil
}

// DeleteProfile removes a profile. Deleting the active profile activates the
// first remaining one, or none when it was the last.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.mutate(ctx, func(next *snapshot) error {
		if _, ok := next.profiles[id]; !ok {
			return ErrProfileNotFound
		}
		delete(next.profiles, id)
		next.order = slices.DeleteFunc(next.order, func(o string) bool { return o == id })
		if next.activeID == id {
			next.activeID = ""
			if len(next.order) > 0 {
				next.activeID = next.order[0]
			}
		}
		return nil
	})
}

// RenameProfile sets a profile's name. A blank name keeps the old one.
func (s *Store) RenameProfile(ctx context.Context, id, name string) error {
	return s.mutate(ctx, func(next *snapshot) error {
		p, ok := next.profiles[id]
		if !ok {
			return ErrProfileNotFound
		}
		if name = strings.TrimSpace(name); name != "" {
			p.Name = name
		}
		next.profiles[id] = p
		return nil
	})
}

// SetActiveProfile switches the active profile.
func (s *Store) SetActiveProfile(ctx context.Context, id string) error {
	return s.mutate(ctx, func(next *snapshot) error {
		if _, ok := next.profiles[id]; !ok {
			return ErrProfileNotFound
		}
		next.activeID = id
		return nil
	})
}

// UpdateSettings merges u into the active profile's settings, last write wins per field.
func (s *Store) UpdateSettings(ctx context.Context, u models.SettingsUpdate) (models.ProfileSettings, error) {
	if u.Theme != nil && !models.ValidTheme(*u.Theme) {
		return models.ProfileSettings{}, fmt.Errorf("%w: theme %q", ErrInvalidSettings, *u.Theme)
	}
	if u.PlayerPreference != nil && !models.ValidPlayerPreference(*u.PlayerPreference) {
		return models.ProfileSettings{}, fmt.Errorf("%w: player preference %q", ErrInvalidSettings, *u.PlayerPreference)
	}

	var out models.ProfileSettings
	err := s.mutateActive(ctx, func(p *models.UserProfile) error {
		p.Settings = u.Apply(p.Settings)
		out = p.Settings
		return nil
	})
	return out, err
}

// SetPlaylists replaces the active profile's playlist list.
func (s *Store) SetPlaylists(ctx context.Context, urls []string) error {
	return s.mutateActive(ctx, func(p *models.UserProfile) error {
		p.Playlists = dedupe(urls)
		return nil
	})
}

// AddPlaylist appends url to the active profile unless already present.
func (s *Store) AddPlaylist(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyPlaylistURL
	}
	return s.mutateActive(ctx, func(p *models.UserProfile) error {
		if !slices.Contains(p.Playlists, url) {
			p.Playlists = append(p.Playlists, url)
		}
		return nil
	})
}

// RemovePlaylist drops url from the active profile.
func (s *Store) RemovePlaylist(ctx context.Context, url string) error {
	return s.mutateActive(ctx, func(p *models.UserProfile) error {
		p.Playlists = slices.DeleteFunc(p.Playlists, func(u string) bool { return u == url })
		return nil
	})
}

func (s *Store) mutateActive(ctx context.Context, fn func(p *models.UserProfile) error) error {
	return s.mutate(ctx, func(next *snapshot) error {
		p, ok := next.profiles[next.activeID]
		if !ok {
			return ErrNoActiveProfile
		}
		if err := fn(&p); err != nil {
			return err
		}
		next.profiles[next.activeID] = p
		return nil
	})
}

// mutate applies fn to a copy of the state, persists it, then publishes it.
// Writers are serialized so the persisted document always matches memory.
func (s *Store) mutate(ctx context.Context, fn func(next *snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := snapshot{
		order:    slices.Clone(s.order),
		profiles: make(map[string]models.UserProfile, len(s.profiles)),
		activeID: s.activeID,
	}
	for id, p := range s.profiles {
		next.profiles[id] = p.Clone()
	}
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.order, s.profiles, s.activeID = next.order, next.profiles, next.activeID
	return nil
}

func (s *Store) persist(ctx context.Context, snap snapshot) error {
	doc := document{Version: documentVersion}
	doc.State.Profiles = orderedProfiles{order: snap.order, byID: snap.profiles}
	if snap.activeID != "" {
		id := snap.activeID
		doc.State.ActiveProfileID = &id
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := s.backend.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	return nil
}

type snapshot struct {
	order    []string
	profiles map[string]models.UserProfile
	activeID string
}

func (s *snapshot) add(p models.UserProfile) {
	s.order = append(s.order, p.ID)
	s.profiles[p.ID] = p
}

func newProfile(id, name string) models.UserProfile {
	return models.UserProfile{
		ID:        id,
		Name:      name,
		Playlists: []string{},
		Settings:  models.DefaultSettings(),
	}
}

// sanitize fills fields older documents may lack.
func sanitize(id string, p models.UserProfile) models.UserProfile {
	p.ID = id
	if p.Playlists == nil {
		p.Playlists = []string{}
	}
	def := models.DefaultSettings()
	if !models.ValidTheme(p.Settings.Theme) {
		p.Settings.Theme = def.Theme
	}
	if !models.ValidPlayerPreference(p.Settings.PlayerPreference) {
		p.Settings.PlayerPreference = def.PlayerPreference
	}
	return p
}

func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}
