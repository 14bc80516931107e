package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// MemSink is a map-backed Sink double for tests, grounded on the
// teacher's map-plus-mutex bookkeeping shape (internal/ratelimit's
// stats map).
type MemSink struct {
	mu sync.Mutex

	Servers  map[result.ServerKey]*result.ScanResult
	Statuses map[result.ServerKey][]*result.ScanResult
	Players  map[string]result.Player
	Mods     map[string]string // mod_id -> first-seen version
	Favicons map[[32]byte][]byte

	initialized bool
	closed      bool
}

// NewMemSink builds an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{
		Servers:  make(map[result.ServerKey]*result.ScanResult),
		Statuses: make(map[result.ServerKey][]*result.ScanResult),
		Players:  make(map[string]result.Player),
		Mods:     make(map[string]string),
		Favicons: make(map[[32]byte][]byte),
	}
}

func (m *MemSink) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

func (m *MemSink) UpsertServer(ctx context.Context, r *result.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Servers[result.ServerKey{IP: r.IP, Port: r.Port}] = r
	return nil
}

func (m *MemSink) RecordStatus(ctx context.Context, r *result.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := result.ServerKey{IP: r.IP, Port: r.Port}
	m.Statuses[key] = append(m.Statuses[key], r)
	return nil
}

func (m *MemSink) UpsertPlayer(ctx context.Context, p result.PlayerSample, seenAt time.Time, server result.ServerKey) error {
	if !p.HasUUID {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.UUID.String()
	pl, ok := m.Players[key]
	if !ok {
		pl = result.Player{UUID: p.UUID, Name: p.Name, FirstSeen: seenAt, Servers: map[result.ServerKey]struct{}{}}
	}
	pl.Name = p.Name
	pl.LastSeen = seenAt
	pl.Servers[server] = struct{}{}
	m.Players[key] = pl
	return nil
}

func (m *MemSink) UpsertMod(ctx context.Context, mod result.Mod, server result.ServerKey, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Mods[mod.ID]; !ok {
		m.Mods[mod.ID] = version
	}
	return nil
}

func (m *MemSink) UpsertFavicon(ctx context.Context, hash [32]byte, bytes []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Favicons[hash]; !ok {
		m.Favicons[hash] = bytes
	}
	return nil
}

func (m *MemSink) PersistResult(ctx context.Context, r *result.ScanResult) error {
	if err := m.UpsertServer(ctx, r); err != nil {
		return err
	}
	if err := m.RecordStatus(ctx, r); err != nil {
		return err
	}
	server := result.ServerKey{IP: r.IP, Port: r.Port}
	for _, mod := range r.Mods {
		if err := m.UpsertMod(ctx, mod, server, mod.Version); err != nil {
			return err
		}
	}
	for _, p := range r.PlayerSample {
		if err := m.UpsertPlayer(ctx, p, r.DiscoveredAt, server); err != nil {
			return err
		}
	}
	if r.FaviconHash != nil {
		if err := m.UpsertFavicon(ctx, *r.FaviconHash, r.FaviconBytes); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("persistence: sink already closed")
	}
	m.closed = true
	return nil
}
