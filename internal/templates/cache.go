// Package templates caches the approved-template listing per account.
package templates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"whatsapp-sender/internal/whatsapp"
)

// DefaultTTL matches how long a listing may be served without refetching.
const DefaultTTL = time.Hour

// Fetcher lists approved templates. *whatsapp.Client satisfies it.
type Fetcher interface {
	ListTemplates(ctx context.Context, token, businessAccountID string) ([]whatsapp.Template, error)
}

// Backend stores listings under opaque keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]whatsapp.Template, bool, error)
	Set(ctx context.Context, key string, templates []whatsapp.Template, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Cache is a read-through cache keyed by (token, business account ID).
// Fetch errors are returned and never stored.
type Cache struct {
	fetcher Fetcher
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
}

func NewCache(fetcher Fetcher, backend Backend, ttl time.Duration, logger *zap.Logger) *Cache {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{fetcher: fetcher, backend: backend, ttl: ttl, logger: logger}
}

// Get returns the cached listing or fetches and stores a fresh one.
func (c *Cache) Get(ctx context.Context, token, businessAccountID string) ([]whatsapp.Template, error) {
	key := cacheKey(token, businessAccountID)

	cached, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("template cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	fresh, err := c.fetcher.ListTemplates(ctx, token, businessAccountID)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Set(ctx, key, fresh, c.ttl); err != nil {
		c.logger.Warn("template cache write failed", zap.Error(err))
	}
	return fresh, nil
}

// Invalidate drops every cached listing.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// cacheKey hashes the token so it never appears in a backend key.
func cacheKey(token, businessAccountID string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:]) + ":" + businessAccountID
}
