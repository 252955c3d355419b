// Package cache provides the cross-cutting request cache shared by all
// non-session data readers. The engine itself never reads through it;
// it only flushes it whole on identity-affecting transitions, which is
// why InvalidateAll is the one method the session contracts require.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	session "github.com/plazaops/session-go"
)

// DefaultTTL bounds how long an entry is served without reloading.
const DefaultTTL = 5 * time.Minute

// Memory is an in-process TTL cache. Concurrent loads of the same key
// are coalesced so a flushed cache does not stampede the origin.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	flushes uint64

	sf singleflight.Group
}

var _ session.RequestCache = (*Memory)(nil)

type entry struct {
	value   interface{}
	expires time.Time
}

// Option configures the Memory cache.
type Option func(*Memory)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) { m.ttl = ttl }
}

// WithNow injects a clock. Tests only.
func WithNow(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the cached value for key if present and unexpired.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the configured TTL.
func (m *Memory) Set(key string, value interface{}) {
	m.mu.Lock()
	m.entries[key] = entry{value: value, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// GetOrLoad returns the cached value for key, or runs loader to fill
// it. Concurrent callers for the same key share one loader run.
//
// A load that straddles an InvalidateAll is returned to its caller but
// not stored: the flush marks an identity transition, and data loaded
// under the previous identity must not refill the cache.
func (m *Memory) GetOrLoad(ctx context.Context, key string, loader func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}

	v, err, _ := m.sf.Do(key, func() (interface{}, error) {
		// Another caller may have filled the entry while we queued.
		if v, ok := m.Get(key); ok {
			return v, nil
		}

		m.mu.RLock()
		flushes := m.flushes
		m.mu.RUnlock()

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.flushes == flushes {
			m.entries[key] = entry{value: v, expires: m.now().Add(m.ttl)}
		}
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// InvalidateAll removes every cached entry and bars in-flight loads
// from storing their results.
func (m *Memory) InvalidateAll(ctx context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.flushes++
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries, expired ones included until
// their next read.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
