package result

import (
	"crypto/md5"

	"github.com/google/uuid"

	"github.com/LK-Customs/Pingcrafty/internal/document"
)

// OnlineMode is a tri-state guess at whether a server authenticates
// players against the official session service, inferred from the
// shape of the UUIDs in its (unauthoritative) player sample.
type OnlineMode int

const (
	OnlineModeUnknown OnlineMode = iota
	OnlineModeLikelyOnline
	OnlineModeLikelyOffline
)

func (m OnlineMode) String() string {
	switch m {
	case OnlineModeLikelyOnline:
		return "likely-online"
	case OnlineModeLikelyOffline:
		return "likely-offline"
	default:
		return "unknown"
	}
}

// offlinePlayerUUID reproduces Java's UUID.nameUUIDFromBytes applied to
// "OfflinePlayer:"+name: a raw MD5 digest of the bytes with the
// version/variant bits overwritten, NOT a namespace-keyed UUIDv3 (the
// namespace-prefixed RFC4122 construction hashes
// namespace||name, which is a different digest).
func offlinePlayerUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	id := uuid.UUID(sum)
	id[6] = (id[6] & 0x0f) | 0x30
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// GuessOnlineMode discriminates UUIDv3 (offline-derived) from UUIDv4
// (Mojang-issued) across the player sample. A v3 UUID is only treated
// as confirming offline mode if it reproduces from the player's name
// under the documented derivation; a v4 UUID confirms online mode on
// shape alone, since online UUIDs are opaque identifiers the scanner
// cannot re-derive.
func GuessOnlineMode(sample []document.PlayerSampleEntry) OnlineMode {
	if len(sample) == 0 {
		return OnlineModeUnknown
	}

	sawOnline := false
	sawOffline := false
	sawAmbiguous := false

	for _, p := range sample {
		id, err := uuid.Parse(p.UUID)
		if err != nil {
			sawAmbiguous = true
			continue
		}
		switch id.Version() {
		case 4:
			sawOnline = true
		case 3:
			if id == offlinePlayerUUID(p.Name) {
				sawOffline = true
			} else {
				sawAmbiguous = true
			}
		default:
			sawAmbiguous = true
		}
	}

	switch {
	case sawOffline && !sawOnline && !sawAmbiguous:
		return OnlineModeLikelyOffline
	case sawOnline && !sawOffline && !sawAmbiguous:
		return OnlineModeLikelyOnline
	default:
		return OnlineModeUnknown
	}
}
