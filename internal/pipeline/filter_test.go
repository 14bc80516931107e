package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
)

func TestFilterHook_DropsBlacklistedAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	writeFile(t, path, "192.0.2.0/24\n")

	list, err := blacklist.New(blacklist.Config{Enabled: true, FilePath: path})
	if err != nil {
		t.Fatalf("blacklist.New: %v", err)
	}
	h := NewFilterHook(list)

	decision, err := h.Process(context.Background(), newResult("192.0.2.5"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if decision != Drop {
		t.Fatalf("expected Drop for blacklisted address, got %v", decision)
	}

	decision, err = h.Process(context.Background(), newResult("198.51.100.5"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if decision != Continue {
		t.Fatalf("expected Continue for non-blacklisted address, got %v", decision)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
