package player

import (
	"context"
	"sync"
)

// Embedded tracks the stream the front-end's built-in player should show.
// It never spawns anything; Current reports the loaded stream.
type Embedded struct {
	mu      sync.RWMutex
	current *Request
}

// NewEmbedded returns an idle embedded player.
func NewEmbedded() *Embedded { return &Embedded{} }

func (e *Embedded) Load(_ context.Context, req Request) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = &req
	return nil
}

func (e *Embedded) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	return nil
}

// Available is always true.
func (e *Embedded) Available() bool { return true }

// Current returns the stream being shown.
func (e *Embedded) Current() (Request, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return Request{}, false
	}
	return *e.current, true
}
