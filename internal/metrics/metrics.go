// Package metrics collects scan counters and a smoothed throughput
// estimate, and optionally exports them to Prometheus.
package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// emaAlpha is the rate estimator's smoothing factor, per spec.md §4.7.
const emaAlpha = 0.2

// Collector holds the scanner's running counters. Every field is
// atomic: many worker goroutines write, one progress reporter reads.
type Collector struct {
	Attempted        atomic.Uint64
	Success          atomic.Uint64
	LegacyDetected   atomic.Uint64
	Timeout          atomic.Uint64
	Refused          atomic.Uint64
	Unreachable      atomic.Uint64
	ProtocolError    atomic.Uint64
	BlacklistSkipped atomic.Uint64
	RateLimited      atomic.Uint64

	ActiveWorkers atomic.Int64

	rateEMABits atomic.Uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (m *Collector) IncrementAttempted()        { m.Attempted.Add(1) }
func (m *Collector) IncrementSuccess()          { m.Success.Add(1) }
func (m *Collector) IncrementLegacy()           { m.LegacyDetected.Add(1) }
func (m *Collector) IncrementTimeout()          { m.Timeout.Add(1) }
func (m *Collector) IncrementRefused()          { m.Refused.Add(1) }
func (m *Collector) IncrementUnreachable()      { m.Unreachable.Add(1) }
func (m *Collector) IncrementProtocolError()    { m.ProtocolError.Add(1) }
func (m *Collector) IncrementBlacklistSkipped() { m.BlacklistSkipped.Add(1) }
func (m *Collector) IncrementRateLimited()      { m.RateLimited.Add(1) }

// SetActiveWorkers records the current number of busy worker slots.
func (m *Collector) SetActiveWorkers(n int64) { m.ActiveWorkers.Store(n) }

// IncrementActiveWorkers marks one more worker slot as busy.
func (m *Collector) IncrementActiveWorkers() { m.ActiveWorkers.Add(1) }

// DecrementActiveWorkers marks one worker slot as no longer busy.
func (m *Collector) DecrementActiveWorkers() { m.ActiveWorkers.Add(-1) }

// GetActiveWorkers returns the current number of busy worker slots.
func (m *Collector) GetActiveWorkers() int64 { return m.ActiveWorkers.Load() }

// UpdateRate folds a fresh per-second throughput sample into the
// running EMA (α = 0.2 per spec.md §4.7).
func (m *Collector) UpdateRate(sample float64) {
	prev := math.Float64frombits(m.rateEMABits.Load())
	next := sample
	if prev != 0 {
		next = emaAlpha*sample + (1-emaAlpha)*prev
	}
	m.rateEMABits.Store(math.Float64bits(next))
}

// Rate returns the current smoothed throughput estimate in probes/sec.
func (m *Collector) Rate() float64 {
	return math.Float64frombits(m.rateEMABits.Load())
}

// GetTotalSuccess returns successes, including legacy-protocol hits.
func (m *Collector) GetTotalSuccess() uint64 {
	return m.Success.Load() + m.LegacyDetected.Load()
}

// GetTotalErrors sums every non-success, non-skip terminal outcome.
func (m *Collector) GetTotalErrors() uint64 {
	return m.Timeout.Load() + m.Refused.Load() + m.Unreachable.Load() + m.ProtocolError.Load()
}

// Reset zeroes every counter. Used between scan runs in long-lived
// processes (e.g. a scheduled rescan).
func (m *Collector) Reset() {
	m.Attempted.Store(0)
	m.Success.Store(0)
	m.LegacyDetected.Store(0)
	m.Timeout.Store(0)
	m.Refused.Store(0)
	m.Unreachable.Store(0)
	m.ProtocolError.Store(0)
	m.BlacklistSkipped.Store(0)
	m.RateLimited.Store(0)
	m.ActiveWorkers.Store(0)
	m.rateEMABits.Store(0)
}

// Snapshot is a point-in-time view of the counters, suitable for a
// progress event per spec.md §4.7.
type Snapshot struct {
	Attempted        uint64    `json:"attempted"`
	Success          uint64    `json:"success"`
	LegacyDetected   uint64    `json:"legacy_detected"`
	Timeout          uint64    `json:"timeout"`
	Refused          uint64    `json:"refused"`
	Unreachable      uint64    `json:"unreachable"`
	ProtocolError    uint64    `json:"protocol_error"`
	BlacklistSkipped uint64    `json:"blacklist_skipped"`
	RateLimited      uint64    `json:"rate_limited"`
	ActiveWorkers    int64     `json:"active_workers"`
	RatePerSecond    float64   `json:"rate_per_second"`
	TakenAt          time.Time `json:"taken_at"`
}

// Snapshot captures a best-effort read of every counter: each field is
// independently atomic, but no lock covers the snapshot as a whole.
// That's adequate for a progress display, not for an invariant check.
func (m *Collector) Snapshot() Snapshot {
	return Snapshot{
		Attempted:        m.Attempted.Load(),
		Success:          m.Success.Load(),
		LegacyDetected:   m.LegacyDetected.Load(),
		Timeout:          m.Timeout.Load(),
		Refused:          m.Refused.Load(),
		Unreachable:      m.Unreachable.Load(),
		ProtocolError:    m.ProtocolError.Load(),
		BlacklistSkipped: m.BlacklistSkipped.Load(),
		RateLimited:      m.RateLimited.Load(),
		ActiveWorkers:    m.ActiveWorkers.Load(),
		RatePerSecond:    m.Rate(),
		TakenAt:          time.Now(),
	}
}

// ETA estimates the remaining duration to scan total targets, given
// the snapshot's current rate. Returns 0 if the rate is unknown yet
// or the scan has already reached total.
func (s Snapshot) ETA(total uint64) time.Duration {
	if s.RatePerSecond <= 0 || s.Attempted >= total {
		return 0
	}
	remaining := float64(total - s.Attempted)
	return time.Duration(remaining/s.RatePerSecond) * time.Second
}
