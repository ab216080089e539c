package fetcher

import (
	"regexp"
	"strings"

	"github.com/voyagen/matrixiptv/internal/models"
)

const (
	headerMarker = "#EXTM3U"
	entryMarker  = "#EXTINF"
	defaultName  = "Channel"
)

var (
	reTvgURL    = regexp.MustCompile(`(?i)x-tvg-url="([^"]+)"`)
	reTvgID     = regexp.MustCompile(`(?i)tvg-id="([^"]+)"`)
	reGroup     = regexp.MustCompile(`(?i)group-title="([^"]+)"`)
	reCommaName = regexp.MustCompile(`,(.*)$`)
)

// splitLines splits text on "\n" and "\r\n".
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ParseHeaderEPGURL returns the x-tvg-url attribute of the #EXTM3U header
// line, or "" when the first line is not a header or has no guide URL.
func ParseHeaderEPGURL(text string) string {
	header, _, _ := strings.Cut(text, "\n")
	header = strings.TrimSuffix(header, "\r")
	if !strings.HasPrefix(header, headerMarker) {
		return ""
	}
	return matchFirst(reTvgURL, header)
}

// ParseChannels returns one record per #EXTINF line, in playlist order.
// The line after each #EXTINF is taken as the stream URL whatever it holds;
// a trailing #EXTINF gets an empty URL.
func ParseChannels(text string) []models.ChannelRecord {
	lines := splitLines(text)
	var records []models.ChannelRecord
	for i, line := range lines {
		if !strings.HasPrefix(line, entryMarker) {
			continue
		}
		url := ""
		if i+1 < len(lines) {
			url = strings.TrimSpace(lines[i+1])
		}
		name := defaultName
		if m := reCommaName.FindStringSubmatch(line); m != nil {
			name = strings.TrimSpace(m[1])
		}
		records = append(records, models.ChannelRecord{
			Name:  name,
			URL:   url,
			Group: matchFirst(reGroup, line),
			TvgID: matchFirst(reTvgID, line),
		})
	}
	return records
}

// ParsePlaylist extracts the guide URL and channel records from M3U text.
func ParsePlaylist(text string) Playlist {
	return Playlist{
		EPGURL:  ParseHeaderEPGURL(text),
		Records: ParseChannels(text),
	}
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
