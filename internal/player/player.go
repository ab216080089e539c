// Package player hands channels off to an external player process or to the
// front-end's embedded player.
package player

import (
	"context"
	"errors"
)

// ErrExternalPlayerUnavailable is returned when no external player binary can be found.
var ErrExternalPlayerUnavailable = errors.New("external player not found")

// DefaultTitle is used when a request carries no title.
const DefaultTitle = "Matrix_IPTV"

// Request describes one stream to play.
type Request struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Options []string `json:"options,omitempty"`
}

// External is a player running outside this process.
type External interface {
	// Load starts playing req, replacing whatever was playing.
	Load(ctx context.Context, req Request) error
	// Stop ends playback. Stopping an idle player is not an error.
	Stop(ctx context.Context) error
	// Available reports whether a player binary was found.
	Available() bool
}
