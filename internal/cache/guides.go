package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/voyagen/matrixiptv/internal/models"
)

// DefaultGuideTTL is how long an indexed guide stays cached.
const DefaultGuideTTL = 30 * time.Minute

// Guides caches indexed XMLTV guides by URL.
type Guides struct {
	r   *Redis
	ttl time.Duration
}

// NewGuides returns a guide cache; ttl <= 0 uses DefaultGuideTTL.
func NewGuides(r *Redis, ttl time.Duration) *Guides {
	if ttl <= 0 {
		ttl = DefaultGuideTTL
	}
	return &Guides{r: r, ttl: ttl}
}

func guideKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "epg:" + hex.EncodeToString(sum[:8])
}

// Get returns the cached index for url.
func (g *Guides) Get(ctx context.Context, url string) (models.EPGIndex, bool) {
	idx, err := Get[models.EPGIndex](ctx, g.r, guideKey(url))
	if err != nil {
		return nil, false
	}
	return idx, true
}

// Put stores idx for url.
func (g *Guides) Put(ctx context.Context, url string, idx models.EPGIndex) error {
	return Set(ctx, g.r, guideKey(url), idx, g.ttl)
}

// Invalidate drops the cached index for url.
func (g *Guides) Invalidate(ctx context.Context, url string) error {
	return Del(ctx, g.r, guideKey(url))
}
