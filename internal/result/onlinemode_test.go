package result

import (
	"testing"

	"github.com/LK-Customs/Pingcrafty/internal/document"
)

func TestGuessOnlineModeEmpty(t *testing.T) {
	if got := GuessOnlineMode(nil); got != OnlineModeUnknown {
		t.Errorf("empty sample: got %s, want unknown", got)
	}
}

func TestGuessOnlineModeOnline(t *testing.T) {
	sample := []document.PlayerSampleEntry{
		{Name: "Alice", UUID: "a0000000-0000-4000-8000-000000000001"},
	}
	if got := GuessOnlineMode(sample); got != OnlineModeLikelyOnline {
		t.Errorf("got %s, want likely-online", got)
	}
}

func TestGuessOnlineModeOffline(t *testing.T) {
	// b50ad385-829d-3141-a5cf-d77e236ade5a is the real, independently
	// known offline-mode UUID Java's UUID.nameUUIDFromBytes produces
	// for "OfflinePlayer:Notch" — not derived from the code under test.
	sample := []document.PlayerSampleEntry{
		{Name: "Notch", UUID: "b50ad385-829d-3141-a5cf-d77e236ade5a"},
	}
	if got := GuessOnlineMode(sample); got != OnlineModeLikelyOffline {
		t.Errorf("got %s, want likely-offline", got)
	}
}

func TestOfflinePlayerUUID_MatchesKnownValue(t *testing.T) {
	got := offlinePlayerUUID("Notch")
	want := "b50ad385-829d-3141-a5cf-d77e236ade5a"
	if got.String() != want {
		t.Errorf("offlinePlayerUUID(%q) = %s, want %s", "Notch", got, want)
	}
}

func TestGuessOnlineModeAmbiguousMixedSample(t *testing.T) {
	sample := []document.PlayerSampleEntry{
		{Name: "Alice", UUID: "a0000000-0000-4000-8000-000000000001"},
		{Name: "Mallory", UUID: "not-a-uuid"},
	}
	if got := GuessOnlineMode(sample); got != OnlineModeUnknown {
		t.Errorf("got %s, want unknown for ambiguous sample", got)
	}
}
