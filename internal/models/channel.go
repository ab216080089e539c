package models

import "slices"

// ChannelRecord is a single #EXTINF entry from an M3U playlist (name, url, raw group, tvg-id).
type ChannelRecord struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Group string `json:"group"`            // raw group-title, possibly ';'-delimited
	TvgID string `json:"tvg_id,omitempty"` // empty when the entry carries no tvg-id
}

// CategorizedChannel is a ChannelRecord with its display categories resolved.
// ID is positional ("<name>-<index>") and only unique within one parse pass.
type CategorizedChannel struct {
	ChannelRecord
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Groups []string `json:"groups"`
}

// InGroup reports whether the channel is listed under category.
func (c CategorizedChannel) InGroup(category string) bool {
	return slices.Contains(c.Groups, category)
}
