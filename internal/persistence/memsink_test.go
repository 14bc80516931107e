package persistence

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LK-Customs/Pingcrafty/internal/document"
	"github.com/LK-Customs/Pingcrafty/internal/result"
)

func sampleResult(t *testing.T) *result.ScanResult {
	t.Helper()
	doc := &document.ServerDocument{
		VersionName:   "1.21",
		PlayersOnline: 1,
		PlayersMax:    20,
		PlayerSample:  []document.PlayerSampleEntry{{Name: "Alice", UUID: uuid.New().String()}},
		Mods:          []document.Mod{{ID: "jei", Version: "1.0"}},
	}
	return result.Normalize(netip.MustParseAddr("192.0.2.1"), 25565, doc, 10*time.Millisecond, time.Now())
}

func TestMemSink_PersistResultPopulatesAllTables(t *testing.T) {
	sink := NewMemSink()
	if err := sink.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r := sampleResult(t)

	if err := sink.PersistResult(context.Background(), r); err != nil {
		t.Fatalf("PersistResult: %v", err)
	}

	key := result.ServerKey{IP: r.IP, Port: r.Port}
	if _, ok := sink.Servers[key]; !ok {
		t.Error("expected server upserted")
	}
	if len(sink.Statuses[key]) != 1 {
		t.Error("expected one status snapshot")
	}
	if len(sink.Players) != 1 {
		t.Error("expected one player recorded")
	}
	if len(sink.Mods) != 1 {
		t.Error("expected one mod recorded")
	}
}

func TestMemSink_CloseIsNotReentrant(t *testing.T) {
	sink := NewMemSink()
	if err := sink.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sink.Close(); err == nil {
		t.Fatal("expected error on double close")
	}
}

func TestMemSink_SkipsPlayerSamplesWithoutUUID(t *testing.T) {
	sink := NewMemSink()
	doc := &document.ServerDocument{
		VersionName:  "1.21",
		PlayerSample: []document.PlayerSampleEntry{{Name: "NoUUID", UUID: "not-a-uuid"}},
	}
	r := result.Normalize(netip.MustParseAddr("192.0.2.1"), 25565, doc, 0, time.Now())
	if err := sink.PersistResult(context.Background(), r); err != nil {
		t.Fatalf("PersistResult: %v", err)
	}
	if len(sink.Players) != 0 {
		t.Errorf("expected malformed-UUID sample skipped, got %d players", len(sink.Players))
	}
}
