package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/persistence"
	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// PersistHook writes a result through a persistence.Sink. Distinct
// (ip, port) targets persist concurrently; writes to the same target
// serialize through a keyed mutex, a map-plus-mutex registry shape
// used throughout this codebase for per-key concurrency control.
type PersistHook struct {
	sink         persistence.Sink
	deadLetterMu sync.Mutex
	deadLetter   *os.File

	keysMu sync.Mutex
	keys   map[result.ServerKey]*sync.Mutex
}

// NewPersistHook wraps sink, appending failed writes to deadLetterPath
// for later reprocessing. An empty path disables dead-lettering.
func NewPersistHook(sink persistence.Sink, deadLetterPath string) (*PersistHook, error) {
	h := &PersistHook{sink: sink, keys: make(map[result.ServerKey]*sync.Mutex)}
	if deadLetterPath == "" {
		return h, nil
	}
	f, err := os.OpenFile(deadLetterPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pipeline: opening dead-letter file: %w", err)
	}
	h.deadLetter = f
	return h, nil
}

func (h *PersistHook) Name() string { return "persist" }

func (h *PersistHook) Initialize(ctx context.Context) error {
	return h.sink.Init(ctx)
}

func (h *PersistHook) Process(ctx context.Context, r *result.ScanResult) (Decision, error) {
	key := result.ServerKey{IP: r.IP, Port: r.Port}
	lock := h.keyMutex(key)
	lock.Lock()
	defer lock.Unlock()

	if err := h.sink.PersistResult(ctx, r); err != nil {
		h.writeDeadLetter(r, err)
		return Continue, err
	}
	return Continue, nil
}

func (h *PersistHook) keyMutex(key result.ServerKey) *sync.Mutex {
	h.keysMu.Lock()
	defer h.keysMu.Unlock()
	m, ok := h.keys[key]
	if !ok {
		m = &sync.Mutex{}
		h.keys[key] = m
	}
	return m
}

// deadLetterEntry is the durable record written for a result whose
// persistence failed, so it can be replayed later.
type deadLetterEntry struct {
	IP        string    `json:"ip"`
	Port      uint16    `json:"port"`
	FailedAt  time.Time `json:"failed_at"`
	Error     string    `json:"error"`
	RawResult []byte    `json:"raw_result"`
}

func (h *PersistHook) writeDeadLetter(r *result.ScanResult, cause error) {
	if h.deadLetter == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		raw = nil
	}
	entry := deadLetterEntry{
		IP:        r.IP.String(),
		Port:      r.Port,
		FailedAt:  time.Now(),
		Error:     cause.Error(),
		RawResult: raw,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	h.deadLetterMu.Lock()
	defer h.deadLetterMu.Unlock()
	h.deadLetter.Write(line)
}

func (h *PersistHook) Finalize() error {
	if h.deadLetter != nil {
		if err := h.deadLetter.Close(); err != nil {
			return err
		}
	}
	return h.sink.Close()
}
