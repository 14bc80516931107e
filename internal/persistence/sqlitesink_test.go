package persistence

import (
	"context"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LK-Customs/Pingcrafty/internal/document"
	"github.com/LK-Customs/Pingcrafty/internal/result"
)

func TestSQLiteSink_InitAndPersistResult(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scan.db")
	sink, err := NewSQLiteSink(Config{Path: dbPath, PoolSize: 2})
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	doc := &document.ServerDocument{
		VersionName:   "Paper 1.20.1",
		PlayersOnline: 2,
		PlayersMax:    20,
		PlayerSample:  []document.PlayerSampleEntry{{Name: "Alice", UUID: uuid.New().String()}},
		Mods:          []document.Mod{{ID: "jei", Version: "1.0"}},
	}
	r := result.Normalize(netip.MustParseAddr("192.0.2.10"), 25565, doc, 15*time.Millisecond, time.Now())

	if err := sink.PersistResult(ctx, r); err != nil {
		t.Fatalf("PersistResult: %v", err)
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM servers").Scan(&count); err != nil {
		t.Fatalf("querying servers: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 server row, got %d", count)
	}

	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM status_snapshots").Scan(&count); err != nil {
		t.Fatalf("querying status_snapshots: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 status row, got %d", count)
	}
}

func TestSQLiteSink_UpsertServerIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scan.db")
	sink, err := NewSQLiteSink(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	doc := &document.ServerDocument{VersionName: "1.21"}
	r := result.Normalize(netip.MustParseAddr("192.0.2.20"), 25565, doc, 0, time.Now())

	for i := 0; i < 2; i++ {
		if err := sink.UpsertServer(ctx, r); err != nil {
			t.Fatalf("UpsertServer iteration %d: %v", i, err)
		}
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM servers").Scan(&count); err != nil {
		t.Fatalf("querying servers: %v", err)
	}
	if count != 1 {
		t.Errorf("expected idempotent upsert to leave 1 row, got %d", count)
	}
}
