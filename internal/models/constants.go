package models

// Channel status shown next to every entry; playlists only carry live streams.
const StatusLive = "LIVE"

// Theme values for ProfileSettings.Theme.
const (
	ThemeDark   = "dark"
	ThemeLight  = "light"
	ThemeSystem = "system"
)

// Player preference values for ProfileSettings.PlayerPreference.
const (
	PlayerInternal    = "internal"
	PlayerVLC         = "vlc"
	PlayerEmbeddedVLC = "embeddedVLC" // not implemented yet, plays through the internal player
)

// Source kinds for a loaded playlist.
const (
	SourceURL    = "url"
	SourceFile   = "file"
	SourceUpload = "upload"
)

// ValidTheme reports whether s is a known theme value.
func ValidTheme(s string) bool {
	switch s {
	case ThemeDark, ThemeLight, ThemeSystem:
		return true
	}
	return false
}

// ValidPlayerPreference reports whether s is a known player preference.
func ValidPlayerPreference(s string) bool {
	switch s {
	case PlayerInternal, PlayerVLC, PlayerEmbeddedVLC:
		return true
	}
	return false
}
