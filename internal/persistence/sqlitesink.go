package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LK-Customs/Pingcrafty/internal/result"
)

const schema = `
CREATE TABLE IF NOT EXISTS servers (
	ip TEXT NOT NULL,
	port INTEGER NOT NULL,
	first_seen TEXT NOT NULL,
	last_seen TEXT NOT NULL,
	software TEXT NOT NULL,
	version_string TEXT NOT NULL,
	PRIMARY KEY (ip, port)
);
CREATE TABLE IF NOT EXISTS status_snapshots (
	ip TEXT NOT NULL,
	port INTEGER NOT NULL,
	discovered_at TEXT NOT NULL,
	players_online INTEGER NOT NULL,
	players_max INTEGER NOT NULL,
	motd_plain TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	online_mode_guess TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS players (
	uuid TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	first_seen TEXT NOT NULL,
	last_seen TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS server_players (
	ip TEXT NOT NULL,
	port INTEGER NOT NULL,
	player_uuid TEXT NOT NULL,
	seen_at TEXT NOT NULL,
	PRIMARY KEY (ip, port, player_uuid)
);
CREATE TABLE IF NOT EXISTS mods (
	mod_id TEXT PRIMARY KEY,
	first_seen TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS server_mods (
	ip TEXT NOT NULL,
	port INTEGER NOT NULL,
	mod_id TEXT NOT NULL,
	version TEXT NOT NULL,
	PRIMARY KEY (ip, port, mod_id)
);
CREATE TABLE IF NOT EXISTS favicons (
	hash TEXT PRIMARY KEY,
	bytes BLOB
);
`

// SQLiteSink persists results to a pure-Go embedded SQLite database
// (no cgo, so the scanner keeps cross-compiling cleanly).
type SQLiteSink struct {
	db *sql.DB
}

// Config configures the SQLite sink's connection pool.
type Config struct {
	Path     string `json:"path"`
	PoolSize int    `json:"pool_size"`
}

// NewSQLiteSink opens (but does not yet initialize) dsn.
func NewSQLiteSink(cfg Config) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening sqlite database: %w", err)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	db.SetMaxOpenConns(poolSize)
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("persistence: applying schema: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) UpsertServer(ctx context.Context, r *result.ScanResult) error {
	return s.upsertServer(ctx, s.db, r)
}

func (s *SQLiteSink) upsertServer(ctx context.Context, q queryer, r *result.ScanResult) error {
	now := r.DiscoveredAt.UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		INSERT INTO servers (ip, port, first_seen, last_seen, software, version_string)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip, port) DO UPDATE SET
			last_seen = excluded.last_seen,
			software = excluded.software,
			version_string = excluded.version_string
	`, r.IP.String(), r.Port, now, now, r.Software.String(), r.VersionString)
	return err
}

func (s *SQLiteSink) RecordStatus(ctx context.Context, r *result.ScanResult) error {
	return s.recordStatus(ctx, s.db, r)
}

func (s *SQLiteSink) recordStatus(ctx context.Context, q queryer, r *result.ScanResult) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO status_snapshots
			(ip, port, discovered_at, players_online, players_max, motd_plain, latency_ms, online_mode_guess)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.IP.String(), r.Port, r.DiscoveredAt.UTC().Format(time.RFC3339),
		r.PlayersOnline, r.PlayersMax, r.MOTDPlain, r.LatencyMillis, r.OnlineModeGuess.String())
	return err
}

func (s *SQLiteSink) UpsertPlayer(ctx context.Context, p result.PlayerSample, seenAt time.Time, server result.ServerKey) error {
	return s.upsertPlayer(ctx, s.db, p, seenAt, server)
}

func (s *SQLiteSink) upsertPlayer(ctx context.Context, q queryer, p result.PlayerSample, seenAt time.Time, server result.ServerKey) error {
	if !p.HasUUID {
		return nil
	}
	ts := seenAt.UTC().Format(time.RFC3339)
	if _, err := q.ExecContext(ctx, `
		INSERT INTO players (uuid, name, first_seen, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET name = excluded.name, last_seen = excluded.last_seen
	`, p.UUID.String(), p.Name, ts, ts); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO server_players (ip, port, player_uuid, seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ip, port, player_uuid) DO UPDATE SET seen_at = excluded.seen_at
	`, server.IP.String(), server.Port, p.UUID.String(), ts)
	return err
}

func (s *SQLiteSink) UpsertMod(ctx context.Context, m result.Mod, server result.ServerKey, version string) error {
	return s.upsertMod(ctx, s.db, m, server, version)
}

func (s *SQLiteSink) upsertMod(ctx context.Context, q queryer, m result.Mod, server result.ServerKey, version string) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO mods (mod_id, first_seen) VALUES (?, ?)
		ON CONFLICT(mod_id) DO NOTHING
	`, m.ID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO server_mods (ip, port, mod_id, version) VALUES (?, ?, ?, ?)
		ON CONFLICT(ip, port, mod_id) DO UPDATE SET version = excluded.version
	`, server.IP.String(), server.Port, m.ID, version)
	return err
}

func (s *SQLiteSink) UpsertFavicon(ctx context.Context, hash [32]byte, bytes []byte) error {
	return s.upsertFavicon(ctx, s.db, hash, bytes)
}

func (s *SQLiteSink) upsertFavicon(ctx context.Context, q queryer, hash [32]byte, data []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO favicons (hash, bytes) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, fmt.Sprintf("%x", hash), data)
	return err
}

// PersistResult writes r's server row, status snapshot, mods, and
// player samples inside one transaction.
func (s *SQLiteSink) PersistResult(ctx context.Context, r *result.ScanResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsertServer(ctx, tx, r); err != nil {
		return fmt.Errorf("persistence: upserting server: %w", err)
	}
	if err := s.recordStatus(ctx, tx, r); err != nil {
		return fmt.Errorf("persistence: recording status: %w", err)
	}

	server := result.ServerKey{IP: r.IP, Port: r.Port}
	for _, m := range r.Mods {
		if err := s.upsertMod(ctx, tx, m, server, m.Version); err != nil {
			return fmt.Errorf("persistence: upserting mod %s: %w", m.ID, err)
		}
	}
	for _, p := range r.PlayerSample {
		if err := s.upsertPlayer(ctx, tx, p, r.DiscoveredAt, server); err != nil {
			return fmt.Errorf("persistence: upserting player %s: %w", p.Name, err)
		}
	}
	if r.FaviconHash != nil {
		if err := s.upsertFavicon(ctx, tx, *r.FaviconHash, r.FaviconBytes); err != nil {
			return fmt.Errorf("persistence: upserting favicon: %w", err)
		}
	}

	return tx.Commit()
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting each
// mutation run standalone or as part of PersistResult's transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
