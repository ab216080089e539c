package fetcher

import "github.com/voyagen/matrixiptv/internal/models"

// Playlist is the parsed content of one M3U document.
type Playlist struct {
	EPGURL  string // from the #EXTM3U header; empty when absent
	Records []models.ChannelRecord
}
