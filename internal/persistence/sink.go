// Package persistence defines the sink interface the module pipeline's
// persist hook writes through, plus two implementations: a pure-Go
// SQLite sink for standalone deployments and an in-memory double for
// tests. The concrete schema is ours to choose — spec.md scopes only
// the interface, not any particular database's DDL.
package persistence

import (
	"context"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// Sink is the persistence boundary the pipeline's persist hook writes
// through. PersistResult bundles the four per-result writes
// (server/status/mods/players) into one atomic unit, matching
// spec.md §4.9's "transactional per result" requirement; the
// individual Upsert*/RecordStatus methods remain callable on their
// own for out-of-band writes (e.g. backfilling a favicon separately).
type Sink interface {
	Init(ctx context.Context) error

	UpsertServer(ctx context.Context, r *result.ScanResult) error
	RecordStatus(ctx context.Context, r *result.ScanResult) error
	UpsertPlayer(ctx context.Context, p result.PlayerSample, seenAt time.Time, server result.ServerKey) error
	UpsertMod(ctx context.Context, m result.Mod, server result.ServerKey, version string) error
	UpsertFavicon(ctx context.Context, hash [32]byte, bytes []byte) error

	// PersistResult writes r's server row, status snapshot, mods, and
	// player samples as one atomic unit.
	PersistResult(ctx context.Context, r *result.ScanResult) error

	Close() error
}
