// Package catalog caches a fetched voice list in the settings store and
// revalidates it in the background once it is older than its TTL.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/readaloud/ttsengine/internal/settings"
	"github.com/readaloud/ttsengine/tts"
)

// DefaultTTL is how long a fetched catalog stays fresh.
const DefaultTTL = 24 * time.Hour

// FetchFunc retrieves the current catalog from its source.
type FetchFunc func(ctx context.Context) ([]tts.Voice, error)

// entry is the stored form of a catalog.
type entry struct {
	Voices    []tts.Voice `json:"voices"`
	FetchedAt time.Time   `json:"ts"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithFallback sets the list returned before any fetch has succeeded.
func WithFallback(voices []tts.Voice) Option {
	return func(c *Cache) { c.fallback = voices }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is a stale-while-revalidate voice list.
type Cache struct {
	store    settings.Store
	key      string
	fetch    FetchFunc
	ttl      time.Duration
	fallback []tts.Voice
	now      func() time.Time

	group    singleflight.Group
	inflight sync.WaitGroup
}

// New creates a Cache persisting under key in store.
func New(store settings.Store, key string, fetch FetchFunc, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		key:   key,
		fetch: fetch,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voices returns the cached list without blocking on the network. When
// nothing is cached, or the cache is older than the TTL, one background
// refresh is started and the cached (or fallback) list is returned.
func (c *Cache) Voices(ctx context.Context) []tts.Voice {
	e, err := c.load()
	if err != nil {
		log.Warn("Voice catalog unreadable", "key", c.key, "error", err)
	}
	if e == nil || c.now().Sub(e.FetchedAt) > c.ttl {
		c.refreshInBackground(ctx)
	}
	if e == nil {
		return append([]tts.Voice(nil), c.fallback...)
	}
	return e.Voices
}

// Refresh fetches and stores the catalog, returning the new list.
func (c *Cache) Refresh(ctx context.Context) ([]tts.Voice, error) {
	v, err, _ := c.group.Do(c.key, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]tts.Voice), nil
}

// FetchedAt returns when the stored catalog was fetched, or the zero time.
func (c *Cache) FetchedAt() time.Time {
	e, _ := c.load()
	if e == nil {
		return time.Time{}
	}
	return e.FetchedAt
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() {
	c.inflight.Wait()
}

func (c *Cache) refreshInBackground(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	c.inflight.Add(1)
	ch := c.group.DoChan(c.key, func() (any, error) {
		return c.refresh(ctx)
	})
	go func() {
		defer c.inflight.Done()
		if res := <-ch; res.Err != nil {
			log.Warn("Voice catalog refresh failed", "key", c.key, "error", res.Err)
		}
	}()
}

func (c *Cache) refresh(ctx context.Context) ([]tts.Voice, error) {
	voices, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(voices) == 0 {
		return nil, fmt.Errorf("catalog %s: empty voice list", c.key)
	}
	if err := c.store.Set(c.key, entry{Voices: voices, FetchedAt: c.now()}); err != nil {
		return nil, fmt.Errorf("save catalog %s: %w", c.key, err)
	}
	log.Debug("Voice catalog refreshed", "key", c.key, "voices", len(voices))
	return voices, nil
}

func (c *Cache) load() (*entry, error) {
	var e entry
	ok, err := c.store.Get(c.key, &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}
