// Package result defines the canonical ScanResult record surfaced to
// the module pipeline, plus the player/mod aggregates the persistence
// sink maintains, and the normalization step that turns a parsed
// ServerDocument into a ScanResult.
package result

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/LK-Customs/Pingcrafty/internal/document"
)

// PlayerSample is one entry of a ScanResult's player sample.
type PlayerSample struct {
	Name string
	UUID uuid.UUID
	// HasUUID is false when the server reported a name with no parsable
	// UUID (malformed samples are kept, not dropped).
	HasUUID bool
}

// Mod is a deduplicated mod entry attached to a ScanResult.
type Mod struct {
	ID      string
	Version string
}

// ScanResult is the canonical, normalized record of one successful or
// noteworthy probe.
type ScanResult struct {
	IP              netip.Addr
	Port            uint16
	DiscoveredAt    time.Time
	ProtocolID      int
	Software        Software
	VersionString   string
	MOTDPlain       string
	MOTDRaw         json.RawMessage
	PlayersOnline   int
	PlayersMax      int
	PlayerSample    []PlayerSample
	Mods            []Mod
	FaviconHash     *[32]byte
	FaviconBytes    []byte
	LatencyMillis   int64
	OnlineModeGuess OnlineMode
	RawDocument     json.RawMessage
	// PlayerCountSuspect records a violation of the players_online <=
	// players_max+epsilon invariant (epsilon=1): the server misreported
	// but the result is kept, flagged rather than dropped.
	PlayerCountSuspect bool
	// GeoCountryCode and GeoCity are populated by the pipeline's enrich
	// hook; empty until then.
	GeoCountryCode string
	GeoCity        string
}

const playerCountEpsilon = 1

// Normalize builds a ScanResult from a parsed ServerDocument.
func Normalize(ip netip.Addr, port uint16, doc *document.ServerDocument, latency time.Duration, now time.Time) *ScanResult {
	sr := &ScanResult{
		IP:              ip,
		Port:            port,
		DiscoveredAt:    now,
		ProtocolID:      doc.ProtocolID,
		Software:        ClassifySoftware(doc),
		VersionString:   doc.VersionName,
		MOTDPlain:       doc.MOTDPlain,
		MOTDRaw:         doc.MOTDRaw,
		PlayersOnline:   doc.PlayersOnline,
		PlayersMax:      doc.PlayersMax,
		LatencyMillis:   latency.Milliseconds(),
		OnlineModeGuess: GuessOnlineMode(doc.PlayerSample),
		RawDocument:     doc.Raw,
	}

	for _, m := range doc.Mods {
		sr.Mods = append(sr.Mods, Mod{ID: m.ID, Version: m.Version})
	}

	for _, p := range doc.PlayerSample {
		ps := PlayerSample{Name: p.Name}
		if id, err := uuid.Parse(p.UUID); err == nil {
			ps.UUID = id
			ps.HasUUID = true
		}
		sr.PlayerSample = append(sr.PlayerSample, ps)
	}

	if doc.Favicon != nil {
		hash := doc.Favicon.Hash
		sr.FaviconHash = &hash
		sr.FaviconBytes = doc.Favicon.Bytes
	}

	if sr.PlayersOnline > sr.PlayersMax+playerCountEpsilon {
		sr.PlayerCountSuspect = true
	}

	return sr
}

// Player is the persisted aggregate of a distinct player UUID observed
// across scans. Mutated only by the persistence sink.
type Player struct {
	UUID      uuid.UUID
	Name      string
	FirstSeen time.Time
	LastSeen  time.Time
	Servers   map[ServerKey]struct{}
}

// ServerKey identifies a distinct (ip, port) endpoint.
type ServerKey struct {
	IP   netip.Addr
	Port uint16
}
