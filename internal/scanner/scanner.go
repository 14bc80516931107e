// Package scanner owns the scan orchestrator: the bounded target
// channel, the worker pool, the memory governor, the pipeline, and
// the stats/shutdown lifecycle tying them together. Grounded on the
// teacher's proxy instance — struct-of-collaborators wiring order,
// its upstream-manager's grace-timer shutdown shape, and its
// report-loop's ticker-driven periodic reporting.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
	"github.com/LK-Customs/Pingcrafty/internal/dialer"
	"github.com/LK-Customs/Pingcrafty/internal/memgov"
	"github.com/LK-Customs/Pingcrafty/internal/metrics"
	"github.com/LK-Customs/Pingcrafty/internal/pipeline"
	"github.com/LK-Customs/Pingcrafty/internal/ratelimit"
	"github.com/LK-Customs/Pingcrafty/internal/target"
	"github.com/LK-Customs/Pingcrafty/internal/worker"
	"github.com/LK-Customs/Pingcrafty/pkg/logger"
)

// resourceExhaustionWindow and resourceExhaustionThreshold implement
// spec.md §7's escalation rule: repeated resource-exhaustion errors
// within the window force a graceful shutdown.
const (
	resourceExhaustionWindow    = 10 * time.Second
	resourceExhaustionThreshold = 5
)

// Config configures one Scanner run. BatchSize sizes the target
// channel (× 4); the notify hook's flush batch is configured on the
// hook itself.
type Config struct {
	BatchSize    int
	GracePeriod  time.Duration
	RefreshRate  float64 // progress events/sec; default 1
	Concurrency  worker.Config
	RateLimit    ratelimit.Config
	Memory       memgov.Config
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 100
	}
	return c.BatchSize
}

func (c Config) gracePeriod() time.Duration {
	if c.GracePeriod <= 0 {
		return 30 * time.Second
	}
	return c.GracePeriod
}

func (c Config) refreshRate() float64 {
	if c.RefreshRate <= 0 {
		return 1
	}
	return c.RefreshRate
}

// ProgressEvent is published on Scanner's Progress channel every
// 1/refresh_rate seconds, per spec.md §4.7/§6.
type ProgressEvent struct {
	Snapshot metrics.Snapshot
	ETA      time.Duration
}

// Scanner owns the target channel, worker pool, pipeline, memory
// governor, and stats for one scan run.
type Scanner struct {
	cfg Config
	log *logger.Logger

	blacklist *blacklist.Blacklist
	limiter   *ratelimit.Limiter
	geoCache  evictable
	pipe      *pipeline.Pipeline
	pool      *worker.Pool
	governor  *memgov.Governor
	collector *metrics.Collector
	prom      *metrics.PrometheusCollectors

	targets chan target.Target
	source  target.Source
	total   uint64 // expected total targets, 0 if unknown (ETA disabled)

	Progress chan ProgressEvent

	exhaustionMu    sync.Mutex
	exhaustionTimes []time.Time

	lastReportAttempted uint64
	lastReportAt        time.Time

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// evictable is satisfied by *geo.Cache; kept narrow so scanner does
// not need to import geo's Provider collaborators.
type evictable interface {
	EvictOldest(n int)
}

// New wires a Scanner from already-constructed collaborators, per
// spec.md §4.7's init order: sink → geo → blacklist → notifier are
// expected to already be folded into hooks by the caller (cmd/scanner
// builds the []pipeline.Hook slice); New itself owns blacklist, rate
// limiter, memory governor, worker pool, and the target channel.
func New(cfg Config, source target.Source, total uint64, list *blacklist.Blacklist, geoCache evictable, d *dialer.Dialer, hooks []pipeline.Hook, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.Default
	}

	collector := metrics.NewCollector()
	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	pipe := pipeline.New(hooks, pipeline.Config{}, log)

	s := &Scanner{
		cfg:       cfg,
		log:       log,
		blacklist: list,
		limiter:   limiter,
		geoCache:  geoCache,
		pipe:      pipe,
		collector: collector,
		targets:   make(chan target.Target, cfg.batchSize()*4),
		source:    source,
		total:     total,
		Progress:  make(chan ProgressEvent, 1),
		shutdown:  make(chan struct{}),
	}

	s.pool = worker.New(cfg.Concurrency, d, limiter, list, pipe, collector, log, s.RecordResourceExhaustion)
	s.governor = memgov.New(cfg.Memory, s.onMemoryEvict, s.onMemoryShutdown)
	return s
}

// Metrics exposes the live collector, e.g. for wiring into
// internal/metrics.InitPrometheus.
func (s *Scanner) Metrics() *metrics.Collector { return s.collector }

// Run executes init order sink/geo/blacklist/notifier (already done
// by the caller via New's hooks/list/geoCache) → spawn memory governor
// → spawn producer → spawn workers, then blocks until ctx is
// cancelled or the target source is exhausted, running shutdown.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.pipe.Initialize(ctx); err != nil {
		return fmt.Errorf("scanner: pipeline init: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.governor.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.produce(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reportProgress(runCtx)
	}()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		s.pool.Run(runCtx, s.targets)
	}()

	select {
	case <-ctx.Done():
	case <-s.shutdown:
	case <-poolDone:
		// Producer exhaustion already closed the channel; pool drained
		// on its own. Cancel so the governor/reporter goroutines exit.
		cancel()
	}

	s.waitWithGrace(poolDone)

	cancel()
	wg.Wait()

	return s.pipe.Finalize()
}

// waitWithGrace waits up to grace_period for the pool to drain after
// shutdown has been initiated; past expiry it returns and Run then
// cancels the run context to force in-flight probes to abort.
func (s *Scanner) waitWithGrace(poolDone <-chan struct{}) {
	select {
	case <-poolDone:
	case <-time.After(s.cfg.gracePeriod()):
		s.log.Error("scanner: grace period expired, forcing shutdown")
	}
}

// Shutdown requests a graceful stop; safe to call more than once and
// from any goroutine.
func (s *Scanner) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// produce pulls targets from source until it is exhausted, ctx is
// cancelled, or Shutdown is called; while the memory governor is
// throttling it waits before pulling the next target.
func (s *Scanner) produce(ctx context.Context) {
	defer close(s.targets)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}
		for s.governor.Throttled() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}

		t, ok, err := s.source.Next(ctx)
		if err != nil {
			s.log.Error("scanner: target source: %v", err)
			return
		}
		if !ok {
			return
		}

		select {
		case s.targets <- t:
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		}
	}
}

// reportProgress publishes a ProgressEvent every 1/refresh_rate
// seconds using a ticker-select loop.
func (s *Scanner) reportProgress(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.cfg.refreshRate())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.lastReportAt = time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			attempted := s.collector.Attempted.Load()
			delta := attempted - s.lastReportAttempted
			elapsed := now.Sub(s.lastReportAt).Seconds()
			if elapsed > 0 {
				s.collector.UpdateRate(float64(delta) / elapsed)
			}
			s.lastReportAttempted = attempted
			s.lastReportAt = now

			snap := s.collector.Snapshot()
			event := ProgressEvent{Snapshot: snap, ETA: snap.ETA(s.total)}
			select {
			case s.Progress <- event:
			default:
				// Slow/absent subscriber: drop rather than block the
				// reporter itself.
			}
		}
	}
}

func (s *Scanner) onMemoryEvict() {
	if s.geoCache != nil {
		s.geoCache.EvictOldest(1000)
	}
	s.limiter.EvictIdleNow()
}

func (s *Scanner) onMemoryShutdown() {
	s.log.Error("scanner: memory ceiling reached, initiating graceful shutdown")
	s.Shutdown()
}

// RecordResourceExhaustion implements spec.md §7's escalation rule:
// resourceExhaustionThreshold occurrences within
// resourceExhaustionWindow triggers Shutdown.
func (s *Scanner) RecordResourceExhaustion() {
	now := time.Now()
	s.exhaustionMu.Lock()
	cutoff := now.Add(-resourceExhaustionWindow)
	kept := s.exhaustionTimes[:0]
	for _, t := range s.exhaustionTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.exhaustionTimes = kept
	count := len(kept)
	s.exhaustionMu.Unlock()

	if count >= resourceExhaustionThreshold {
		s.log.Error("scanner: resource exhaustion escalation threshold reached")
		s.Shutdown()
	}
}
