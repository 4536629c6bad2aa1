package templates

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-sender/internal/whatsapp"
)

type fakeFetcher struct {
	calls     int
	templates []whatsapp.Template
	err       error
}

func (f *fakeFetcher) ListTemplates(_ context.Context, token, businessAccountID string) ([]whatsapp.Template, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.templates, nil
}

func newClockedCache(fetcher Fetcher) (*Cache, *time.Time) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend()
	backend.now = func() time.Time { return now }
	return NewCache(fetcher, backend, time.Hour, nil), &now
}

func TestCacheServesWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{templates: []whatsapp.Template{{Name: "welcome", Status: "APPROVED"}}}
	cache, now := newClockedCache(fetcher)
	ctx := context.Background()

	got, err := cache.Get(ctx, "tok", "2087")
	require.NoError(t, err)
	assert.Equal(t, "welcome", got[0].Name)

	*now = now.Add(59 * time.Minute)
	_, err = cache.Get(ctx, "tok", "2087")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	*now = now.Add(time.Minute)
	_, err = cache.Get(ctx, "tok", "2087")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheKeyedByTokenAndAccount(t *testing.T) {
	fetcher := &fakeFetcher{templates: []whatsapp.Template{{Name: "a"}}}
	cache, _ := newClockedCache(fetcher)
	ctx := context.Background()

	_, _ = cache.Get(ctx, "tok", "1")
	_, _ = cache.Get(ctx, "tok", "2")
	_, _ = cache.Get(ctx, "other", "1")
	_, _ = cache.Get(ctx, "tok", "1")
	assert.Equal(t, 3, fetcher.calls)
}

func TestCacheInvalidate(t *testing.T) {
	fetcher := &fakeFetcher{templates: []whatsapp.Template{{Name: "a"}}}
	cache, _ := newClockedCache(fetcher)
	ctx := context.Background()

	_, _ = cache.Get(ctx, "tok", "1")
	require.NoError(t, cache.Invalidate(ctx))
	_, _ = cache.Get(ctx, "tok", "1")
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("token expired")}
	cache, _ := newClockedCache(fetcher)
	ctx := context.Background()

	_, err := cache.Get(ctx, "tok", "1")
	assert.EqualError(t, err, "token expired")

	fetcher.err = nil
	fetcher.templates = []whatsapp.Template{{Name: "a"}}
	got, err := cache.Get(ctx, "tok", "1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheKeyHidesToken(t *testing.T) {
	key := cacheKey("EAAG-secret", "2087")
	assert.NotContains(t, key, "EAAG-secret")
	assert.Contains(t, key, ":2087")
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	backend := NewRedisBackend(addr, os.Getenv("TEST_REDIS_PASSWORD"))
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, backend.Clear(ctx))
	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	want := []whatsapp.Template{{Name: "promo", Status: "APPROVED", Language: "en_GB"}}
	require.NoError(t, backend.Set(ctx, "k", want, time.Minute))
	got, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, backend.Clear(ctx))
	_, ok, err = backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
