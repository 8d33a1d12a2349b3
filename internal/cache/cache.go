// Package cache is the short-lived response cache shared by the upstream
// clients. Payloads are raw JSON so any backend can hold them.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long an entry is served before it counts as absent.
const DefaultTTL = 5 * time.Minute

// Cache stores upstream payloads by key. A miss covers both an absent key
// and an entry older than the TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
	Clear(ctx context.Context)
}

// EarthquakesKey is the key for a summary feed.
func EarthquakesKey(tf domain.Timeframe) string {
	return "earthquakes_" + string(domain.ParseTimeframe(string(tf)))
}

// DetailKey is the key for a single event's detail document.
func DetailKey(id string) string {
	return "earthquake_" + id
}

// WeatherKey rounds coordinates to two decimals so nearby lookups share an entry.
func WeatherKey(lat, lon float64) string {
	return fmt.Sprintf("weather_%.2f_%.2f", lat, lon)
}

type entry struct {
	payload  []byte
	storedAt time.Time
}

// Memory is an in-process Cache with lazy expiry on read. It has no size
// bound; Sweep drops expired entries for long-running processes.
type Memory struct {
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory creates an empty cache. A non-positive ttl selects DefaultTTL.
func NewMemory(ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if m.clock.Since(e.storedAt) > m.ttl {
		delete(m.entries, key)
		m.metrics.CacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}
	m.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e.payload, true
}

func (m *Memory) Set(_ context.Context, key string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{payload: payload, storedAt: m.clock.Now()}
}

func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	m.metrics.CacheEntries.Set(0)
}

// Sweep removes every expired entry and returns how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if m.clock.Since(e.storedAt) > m.ttl {
			delete(m.entries, k)
			removed++
		}
	}
	m.metrics.CacheEntries.Set(float64(len(m.entries)))
	return removed
}

// Len reports the number of entries held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
