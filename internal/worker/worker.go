// Package worker runs the per-slot probe loop: pull a target, check
// the blacklist, acquire rate tokens and a per-host connection
// permit, probe, classify the outcome, and hand successes to the
// pipeline. Uses defer-based cleanup with counters incremented on
// every exit path, the same shape as a per-connection handler loop.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
	"github.com/LK-Customs/Pingcrafty/internal/dialer"
	"github.com/LK-Customs/Pingcrafty/internal/metrics"
	"github.com/LK-Customs/Pingcrafty/internal/pipeline"
	"github.com/LK-Customs/Pingcrafty/internal/protocol"
	"github.com/LK-Customs/Pingcrafty/internal/ratelimit"
	"github.com/LK-Customs/Pingcrafty/internal/result"
	"github.com/LK-Customs/Pingcrafty/internal/target"
	perrors "github.com/LK-Customs/Pingcrafty/pkg/errors"
	"github.com/LK-Customs/Pingcrafty/pkg/logger"
)

// Config configures a worker Pool.
type Config struct {
	Concurrency           int
	MaxConnectionsPerHost int
	Protocol              protocol.Options
}

func (c Config) concurrency() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}

func (c Config) maxConnectionsPerHost() int {
	if c.MaxConnectionsPerHost <= 0 {
		return 4
	}
	return c.MaxConnectionsPerHost
}

// Pool runs Config.Concurrency worker goroutines, each pulling
// targets from a shared channel until it closes.
type Pool struct {
	cfg       Config
	dialer    *dialer.Dialer
	limiter   *ratelimit.Limiter
	blacklist *blacklist.Blacklist
	pipe      *pipeline.Pipeline
	metrics   *metrics.Collector
	log       *logger.Logger

	onResourceExhaustion func()

	hostPermits hostPermits
	wg          sync.WaitGroup
}

// New builds a Pool. d, limiter, list, pipe, and m must all be
// already initialized; log defaults to logger.Default if nil.
// onResourceExhaustion, if non-nil, is invoked whenever a probe fails
// with KindResourceExhaustion, before this worker's own 1s backoff
// (spec.md §7/§8's escalation rule).
func New(cfg Config, d *dialer.Dialer, limiter *ratelimit.Limiter, list *blacklist.Blacklist, pipe *pipeline.Pipeline, m *metrics.Collector, log *logger.Logger, onResourceExhaustion func()) *Pool {
	if log == nil {
		log = logger.Default
	}
	if onResourceExhaustion == nil {
		onResourceExhaustion = func() {}
	}
	return &Pool{
		cfg:                  cfg,
		dialer:               d,
		limiter:              limiter,
		blacklist:            list,
		pipe:                 pipe,
		metrics:              m,
		log:                  log,
		onResourceExhaustion: onResourceExhaustion,
		hostPermits:          newHostPermits(cfg.maxConnectionsPerHost()),
	}
}

// Run spawns Config.Concurrency workers draining targets until the
// channel closes or ctx is cancelled, then waits for them to exit.
func (p *Pool) Run(ctx context.Context, targets <-chan target.Target) {
	for i := 0; i < p.cfg.concurrency(); i++ {
		p.wg.Add(1)
		go p.loop(ctx, targets)
	}
	p.wg.Wait()
	p.hostPermits.Stop()
}

func (p *Pool) loop(ctx context.Context, targets <-chan target.Target) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-targets:
			if !ok {
				return
			}
			p.metrics.IncrementActiveWorkers()
			p.probeOne(ctx, t)
			p.metrics.DecrementActiveWorkers()
		}
	}
}

// probeOne runs steps 2-8 of spec.md §4.6 for a single target.
func (p *Pool) probeOne(ctx context.Context, t target.Target) {
	p.metrics.IncrementAttempted()
	host := t.Addr.String()

	if p.blacklist.Contains(t.Addr) {
		p.metrics.IncrementBlacklistSkipped()
		return
	}

	deadline := time.Now().Add(p.cfg.Protocol.Budget())
	if err := p.limiter.Acquire(ctx, host, deadline); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			p.metrics.IncrementRateLimited()
			return
		}
		// Context cancellation: shutdown in progress, not a scan outcome.
		return
	}

	release, err := p.hostPermits.acquire(ctx, host)
	if err != nil {
		return
	}
	defer release()

	outcome, err := protocol.Probe(ctx, p.dialer, host, t.Port, p.cfg.Protocol)
	if err != nil {
		p.recordFailure(ctx, host, t.Port, err)
		return
	}

	if outcome.LegacyDetected {
		p.metrics.IncrementLegacy()
	} else {
		p.metrics.IncrementSuccess()
	}

	r := result.Normalize(t.Addr, t.Port, outcome.Document, outcome.Latency, time.Now())
	p.pipe.Submit(ctx, r)
}

// resourceExhaustionBackoff is the per-worker pause spec.md §7 requires
// on the worker that hit a resource-exhaustion error (EMFILE/ENFILE or
// an allocation failure), ahead of the orchestrator's own
// window-based escalation decision.
const resourceExhaustionBackoff = time.Second

func (p *Pool) recordFailure(ctx context.Context, host string, port uint16, err error) {
	var probeErr *perrors.ProbeError
	if !errors.As(err, &probeErr) {
		p.metrics.IncrementProtocolError()
		p.log.Error("worker: probe %s:%d: %v", host, port, err)
		return
	}
	switch probeErr.Kind {
	case perrors.KindTimeout:
		p.metrics.IncrementTimeout()
	case perrors.KindRefused:
		p.metrics.IncrementRefused()
	case perrors.KindUnreachable, perrors.KindReset:
		p.metrics.IncrementUnreachable()
	case perrors.KindResourceExhaustion:
		p.metrics.IncrementProtocolError()
		p.onResourceExhaustion()
		select {
		case <-ctx.Done():
		case <-time.After(resourceExhaustionBackoff):
		}
	default:
		p.metrics.IncrementProtocolError()
	}
}
