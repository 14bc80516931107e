package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// Notifier delivers a flushed batch of results, e.g. to a webhook.
// spec.md scopes the webhook transport itself out — only this
// interface is ours to define.
type Notifier interface {
	Notify(ctx context.Context, batch []*result.ScanResult) error
}

// NotifyHook accumulates results and flushes them as a batch, either
// when the batch fills or on a fixed interval, whichever comes first.
// It is reentrant: distinct results may be submitted concurrently by
// different workers without external synchronization.
type NotifyHook struct {
	notifier      Notifier
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []*result.ScanResult

	stop chan struct{}
	done chan struct{}
}

// NewNotifyHook builds a NotifyHook flushing at batchSize results or
// every flushInterval, whichever happens first.
func NewNotifyHook(notifier Notifier, batchSize int, flushInterval time.Duration) *NotifyHook {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &NotifyHook{
		notifier:      notifier,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

func (h *NotifyHook) Name() string { return "notify" }

func (h *NotifyHook) Initialize(ctx context.Context) error {
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.flushLoop(ctx)
	return nil
}

func (h *NotifyHook) flushLoop(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.flush(ctx)
		case <-h.stop:
			return
		}
	}
}

func (h *NotifyHook) Process(ctx context.Context, r *result.ScanResult) (Decision, error) {
	if h.notifier == nil {
		return Continue, nil
	}
	h.mu.Lock()
	h.pending = append(h.pending, r)
	full := len(h.pending) >= h.batchSize
	h.mu.Unlock()

	if full {
		return Continue, h.flush(ctx)
	}
	return Continue, nil
}

// flush drains the pending batch and delivers it. A delivery failure
// is logged by the caller via Process/Finalize's error return; the
// batch is not retried or requeued — spec.md treats notification as
// best-effort, unlike persistence's dead-letter guarantee.
func (h *NotifyHook) flush(ctx context.Context) error {
	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	h.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return h.notifier.Notify(ctx, batch)
}

func (h *NotifyHook) Finalize() error {
	if h.stop != nil {
		close(h.stop)
		<-h.done
	}
	return h.flush(context.Background())
}
