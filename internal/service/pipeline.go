// Package service turns playlist text into viewer state and owns that state.
package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/voyagen/matrixiptv/internal/category"
	"github.com/voyagen/matrixiptv/internal/fetcher"
	"github.com/voyagen/matrixiptv/internal/models"
)

// ErrEmptyPlaylist is returned when a playlist yields zero channel records.
var ErrEmptyPlaylist = errors.New("no channels found in the playlist")

// Result is the outcome of one pipeline pass over a playlist.
type Result struct {
	Channels   []models.CategorizedChannel `json:"channels"`
	Categories []string                    `json:"categories"`
	EPGURL     string                      `json:"epg_url,omitempty"`
	Success    bool                        `json:"success"`
}

// Err returns ErrEmptyPlaylist when the pass produced no channels.
func (r Result) Err() error {
	if !r.Success {
		return ErrEmptyPlaylist
	}
	return nil
}

// Load parses playlist text into categorized channels and the sorted union of
// their categories. Success does not depend on the EPG URL being present.
func Load(sourceText string) Result {
	return LoadWith(category.Default(), sourceText)
}

// LoadWith is Load with a caller-supplied category table.
func LoadWith(m *category.Mapper, sourceText string) Result {
	playlist := fetcher.ParsePlaylist(sourceText)

	res := Result{
		Channels:   make([]models.CategorizedChannel, 0, len(playlist.Records)),
		Categories: []string{},
		EPGURL:     playlist.EPGURL,
	}

	seen := make(map[string]struct{})
	for i, rec := range playlist.Records {
		groups := m.Map(rec.Group)
		res.Channels = append(res.Channels, models.CategorizedChannel{
			ChannelRecord: rec,
			ID:            fmt.Sprintf("%s-%d", rec.Name, i),
			Status:        models.StatusLive,
			Groups:        groups,
		})
		for _, g := range groups {
			if g == "" {
				continue
			}
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			res.Categories = append(res.Categories, g)
		}
	}
	sort.Strings(res.Categories)
	res.Success = len(res.Channels) > 0
	return res
}
