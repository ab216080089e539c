package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/voyagen/matrixiptv/internal/log"
	"github.com/voyagen/matrixiptv/internal/metrics"
	"github.com/voyagen/matrixiptv/internal/models"
)

// Playback targets reported in NowPlaying.
const (
	TargetExternal = "external"
	TargetEmbedded = "embedded"
)

// liveOptions are added to every external request for live channels.
var liveOptions = []string{
	"--network-caching=1000",
	"--file-caching=1000",
	"--live-caching=1000",
}

// NowPlaying describes the active playback.
type NowPlaying struct {
	ChannelID  string    `json:"channel_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Target     string    `json:"target"`
	Preference string    `json:"preference"`
	Fallback   bool      `json:"fallback"` // preference not implemented, embedded player used instead
	StartedAt  time.Time `json:"started_at"`
}

// Dispatcher routes channels to the external or embedded player according to
// the profile's player preference.
type Dispatcher struct {
	external External
	embedded *Embedded
	logger   zerolog.Logger

	mu  sync.Mutex
	now *NowPlaying
}

// NewDispatcher wires the two players. external may be nil.
func NewDispatcher(external External, embedded *Embedded) *Dispatcher {
	if embedded == nil {
		embedded = NewEmbedded()
	}
	return &Dispatcher{
		external: external,
		embedded: embedded,
		logger:   xlog.WithComponent("player"),
	}
}

// ExternalAvailable reports whether the external path can be used.
func (d *Dispatcher) ExternalAvailable() bool {
	return d.external != nil && d.external.Available()
}

// Embedded returns the embedded player.
func (d *Dispatcher) Embedded() *Embedded { return d.embedded }

// Play starts ch. Preference "vlc" goes to the external player titled
// "LIVE: <name>"; anything else plays embedded. When the external player is
// missing the error is returned and the embedded player is left as it was.
func (d *Dispatcher) Play(ctx context.Context, ch models.CategorizedChannel, preference string) (NowPlaying, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	np := NowPlaying{
		ChannelID:  ch.ID,
		Name:       ch.Name,
		URL:        ch.URL,
		Title:      "LIVE: " + ch.Name,
		Preference: preference,
		StartedAt:  time.Now().UTC(),
	}

	if preference == models.PlayerVLC {
		np.Target = TargetExternal
		err := d.playExternal(ctx, Request{URL: ch.URL, Title: np.Title, Options: liveOptions})
		metrics.RecordPlayback(TargetExternal, err)
		if err != nil {
			d.logger.Warn().Err(err).Str("event", "player.external_failed").Str("channel_id", ch.ID).Msg("external playback failed")
			return NowPlaying{}, err
		}
		_ = d.embedded.Stop(ctx)
		d.now = &np
		return np, nil
	}

	np.Target = TargetEmbedded
	np.Fallback = preference == models.PlayerEmbeddedVLC
	if d.now != nil && d.now.Target == TargetExternal && d.external != nil {
		if err := d.external.Stop(ctx); err != nil {
			d.logger.Warn().Err(err).Str("event", "player.stop_failed").Msg("stopping external player")
		}
	}
	err := d.embedded.Load(ctx, Request{URL: ch.URL, Title: np.Title})
	metrics.RecordPlayback(TargetEmbedded, err)
	if err != nil {
		return NowPlaying{}, err
	}
	d.now = &np
	d.logger.Debug().Str("event", "player.embedded").Str("channel_id", ch.ID).Bool("fallback", np.Fallback).Msg("embedded playback")
	return np, nil
}

func (d *Dispatcher) playExternal(ctx context.Context, req Request) error {
	if !d.ExternalAvailable() {
		return ErrExternalPlayerUnavailable
	}
	if err := d.external.Load(ctx, req); err != nil {
		return fmt.Errorf("external player: %w", err)
	}
	return nil
}

// Stop ends whatever is playing.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = nil
	_ = d.embedded.Stop(ctx)
	if d.external != nil {
		return d.external.Stop(ctx)
	}
	return nil
}

// NowPlaying returns the active playback.
func (d *Dispatcher) NowPlaying() (NowPlaying, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.now == nil {
		return NowPlaying{}, false
	}
	return *d.now, true
}
