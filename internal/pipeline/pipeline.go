// Package pipeline runs each ScanResult through a fixed, ordered set of
// hooks — filter, enrich, persist, notify. The persist hook's
// per-target locking reuses the map-plus-mutex registry shape this
// codebase uses wherever per-key concurrency control is needed.
package pipeline

import (
	"context"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/result"
	"github.com/LK-Customs/Pingcrafty/pkg/logger"
)

// Decision is a Hook's verdict on whether a result continues to the
// next hook.
type Decision int

const (
	// Continue passes the result to the next hook.
	Continue Decision = iota
	// Drop stops further processing of this result.
	Drop
)

// Hook is one stage of the pipeline.
type Hook interface {
	Name() string
	Initialize(ctx context.Context) error
	Process(ctx context.Context, r *result.ScanResult) (Decision, error)
	Finalize() error
}

// Config controls per-hook timeouts.
type Config struct {
	HookTimeout time.Duration
}

func (c Config) hookTimeout() time.Duration {
	if c.HookTimeout <= 0 {
		return 5 * time.Second
	}
	return c.HookTimeout
}

// Pipeline runs hooks in declared order over each submitted result.
type Pipeline struct {
	hooks []Hook
	cfg   Config
	log   *logger.Logger
}

// New builds a Pipeline. hooks are run in the given order; mandatory
// order per the scanner's contract is filter, enrich, persist, notify.
func New(hooks []Hook, cfg Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default
	}
	return &Pipeline{hooks: hooks, cfg: cfg, log: log}
}

// Initialize calls Initialize on every hook in order, failing fast.
func (p *Pipeline) Initialize(ctx context.Context) error {
	for _, h := range p.hooks {
		if err := h.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Submit runs r through every hook in order. A hook returning Drop
// stops processing for r; a hook returning a non-nil error is logged
// and processing continues to the next hook, per the pipeline's
// error-tolerance contract.
func (p *Pipeline) Submit(ctx context.Context, r *result.ScanResult) {
	for _, h := range p.hooks {
		hctx, cancel := context.WithTimeout(ctx, p.cfg.hookTimeout())
		decision, err := h.Process(hctx, r)
		cancel()
		if err != nil {
			p.log.Error("pipeline: hook %s: %s:%d: %v", h.Name(), r.IP, r.Port, err)
		}
		if decision == Drop {
			return
		}
	}
}

// Finalize calls Finalize on every hook, continuing past errors so
// that later hooks (notably notify, which must flush its tail batch)
// still run. The first error encountered is returned.
func (p *Pipeline) Finalize() error {
	var first error
	for _, h := range p.hooks {
		if err := h.Finalize(); err != nil {
			p.log.Error("pipeline: finalizing hook %s: %v", h.Name(), err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
