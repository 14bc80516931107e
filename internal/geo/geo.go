// Package geo provides a TTL-cached geolocation lookup used by the
// enrich pipeline hook. The MaxMind database format and the IP-API
// wire format are external collaborators (spec.md non-goals); this
// package defines only the Provider seam and the cache wrapped around
// it.
package geo

import (
	"context"
	"net/netip"
	"sync"
	"time"
)

// Location is the normalized result of a geolocation lookup.
type Location struct {
	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
}

// Provider resolves an address to a Location. LocalProvider (backed
// by a MaxMind-format database) and a remote IP-API-style provider
// are the two collaborators spec.md names; both satisfy this
// interface and are supplied by the embedder or constructed by
// NewLocalProvider/NewRemoteProvider below.
type Provider interface {
	Lookup(ctx context.Context, addr netip.Addr) (Location, error)
}

type cacheEntry struct {
	loc       Location
	expiresAt time.Time
}

// Cache wraps a Provider with a per-address TTL cache, evicted lazily
// on access and swept periodically (the same aging-sweep shape
// internal/ratelimit uses for its per-host bucket map).
type Cache struct {
	provider Provider
	ttl      time.Duration

	mu      sync.RWMutex
	entries map[netip.Addr]cacheEntry

	stopSweep chan struct{}
}

// NewCache builds a Cache over provider with the given per-entry TTL
// and starts its sweep goroutine.
func NewCache(provider Provider, ttl time.Duration) *Cache {
	c := &Cache{
		provider:  provider,
		ttl:       ttl,
		entries:   make(map[netip.Addr]cacheEntry),
		stopSweep: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Lookup returns a cached Location if unexpired, else queries the
// underlying provider and caches the result.
func (c *Cache) Lookup(ctx context.Context, addr netip.Addr) (Location, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[addr]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		return entry.loc, nil
	}

	loc, err := c.provider.Lookup(ctx, addr)
	if err != nil {
		return Location{}, err
	}

	c.mu.Lock()
	c.entries[addr] = cacheEntry{loc: loc, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	return loc, nil
}

// EvictOldest drops up to n expired-or-oldest entries, called by the
// memory governor at its 95% RSS threshold.
func (c *Cache) EvictOldest(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for addr, entry := range c.entries {
		if removed >= n {
			return
		}
		if entry.expiresAt.Before(now) {
			delete(c.entries, addr)
			removed++
		}
	}
	// Still under budget: fall back to unordered removal (map
	// iteration order is random in Go, which is an acceptable
	// approximation of LRU eviction under memory pressure).
	for addr := range c.entries {
		if removed >= n {
			return
		}
		delete(c.entries, addr)
		removed++
	}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *Cache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, entry := range c.entries {
		if entry.expiresAt.Before(now) {
			delete(c.entries, addr)
		}
	}
}

// Stop ends the sweep goroutine.
func (c *Cache) Stop() {
	select {
	case <-c.stopSweep:
	default:
		close(c.stopSweep)
	}
}

// Len reports the number of cached entries, for metrics and tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
