package models

import "slices"

// ProfileSettings holds per-profile viewer preferences.
type ProfileSettings struct {
	Theme            string `json:"theme"`
	PlayerPreference string `json:"playerPreference"`
	AutoRefresh      bool   `json:"autoRefresh"`
}

// DefaultSettings returns the settings given to new profiles.
func DefaultSettings() ProfileSettings {
	return ProfileSettings{
		Theme:            ThemeDark,
		PlayerPreference: PlayerInternal,
		AutoRefresh:      false,
	}
}

// SettingsUpdate is a partial settings change.
// Pointer fields: nil = don't change, non-nil = set.
type SettingsUpdate struct {
	Theme            *string `json:"theme,omitempty"`
	PlayerPreference *string `json:"player_preference,omitempty"`
	AutoRefresh      *bool   `json:"auto_refresh,omitempty"`
}

// Apply merges u into s, last write wins per field.
func (u SettingsUpdate) Apply(s ProfileSettings) ProfileSettings {
	if u.Theme != nil {
		s.Theme = *u.Theme
	}
	if u.PlayerPreference != nil {
		s.PlayerPreference = *u.PlayerPreference
	}
	if u.AutoRefresh != nil {
		s.AutoRefresh = *u.AutoRefresh
	}
	return s
}

// UserProfile is a named set of settings and saved playlist URLs.
type UserProfile struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Playlists []string        `json:"playlists"`
	Settings  ProfileSettings `json:"settings"`
}

// Clone returns a deep copy so callers cannot mutate store-owned slices.
func (p UserProfile) Clone() UserProfile {
	p.Playlists = slices.Clone(p.Playlists)
	if p.Playlists == nil {
		p.Playlists = []string{}
	}
	return p
}
