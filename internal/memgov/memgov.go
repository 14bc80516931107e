// Package memgov samples process RSS and drives the three memory
// thresholds the scanner reacts to: producer throttling, cache
// eviction, and a hard-ceiling graceful shutdown.
package memgov

import (
	"context"
	"sync/atomic"
	"time"
)

// Config configures the governor's thresholds, all derived from
// MaxMemoryMB.
type Config struct {
	MaxMemoryMB    int64
	SampleInterval time.Duration // default 1s
}

func (c Config) sampleInterval() time.Duration {
	if c.SampleInterval > 0 {
		return c.SampleInterval
	}
	return time.Second
}

func (c Config) maxBytes() int64 { return c.MaxMemoryMB * 1024 * 1024 }

// Governor samples RSS on a ticker and exposes Throttled() for the
// producer to poll, firing onEvict and onShutdown callbacks at the
// 95% and 100% thresholds.
type Governor struct {
	cfg Config

	throttled  atomic.Bool
	lastRSS    atomic.Int64
	onEvict    func()
	onShutdown func()

	// evictedRecently debounces repeated eviction callbacks while RSS
	// stays above the 95% threshold across consecutive samples.
	evictedRecently bool
}

// New builds a Governor. onEvict is invoked once when RSS crosses the
// 95% threshold (expected to evict oldest limiter/geo-cache entries);
// onShutdown is invoked once RSS reaches MaxMemoryMB.
func New(cfg Config, onEvict, onShutdown func()) *Governor {
	if onEvict == nil {
		onEvict = func() {}
	}
	if onShutdown == nil {
		onShutdown = func() {}
	}
	return &Governor{cfg: cfg, onEvict: onEvict, onShutdown: onShutdown}
}

// Run samples RSS every SampleInterval until ctx is canceled.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.sampleInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sampleOnce()
		}
	}
}

func (g *Governor) sampleOnce() {
	rss, err := sampleRSSBytes()
	if err != nil {
		return
	}
	g.evaluate(rss)
}

func (g *Governor) evaluate(rss int64) {
	g.lastRSS.Store(rss)

	maxBytes := g.cfg.maxBytes()
	if maxBytes <= 0 {
		return
	}

	switch {
	case rss >= maxBytes:
		g.onShutdown()
	case float64(rss) > float64(maxBytes)*0.95:
		if !g.evictedRecently {
			g.evictedRecently = true
			g.onEvict()
		}
		g.throttled.Store(true)
	case float64(rss) > float64(maxBytes)*0.85:
		g.throttled.Store(true)
	case float64(rss) < float64(maxBytes)*0.70:
		g.evictedRecently = false
		g.throttled.Store(false)
	}
}

// Throttled reports whether the producer should pause feeding the
// target channel.
func (g *Governor) Throttled() bool {
	return g.throttled.Load()
}

// LastRSSBytes returns the most recently sampled RSS, for metrics.
func (g *Governor) LastRSSBytes() int64 {
	return g.lastRSS.Load()
}
