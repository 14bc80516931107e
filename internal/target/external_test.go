package target

import (
	"os/exec"
	"testing"
)

func TestExternalSource_DrainsChildStdout(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "printf '192.0.2.1\\n# comment\\n192.0.2.2:25566\\n\\n'")
	es, err := NewExternalSource(cmd, 25565)
	if err != nil {
		t.Fatalf("NewExternalSource: %v", err)
	}
	targets := drainAll(t, es)
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d: %+v", len(targets), targets)
	}
	if targets[0].Port != 25565 || targets[1].Port != 25566 {
		t.Errorf("unexpected ports: %+v", targets)
	}
}

func TestExternalSource_SkipsMalformedLines(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "printf 'not-an-ip\\n192.0.2.1\\n'")
	es, err := NewExternalSource(cmd, 25565)
	if err != nil {
		t.Fatalf("NewExternalSource: %v", err)
	}
	targets := drainAll(t, es)
	if len(targets) != 1 {
		t.Fatalf("expected 1 target after skipping malformed line, got %d: %+v", len(targets), targets)
	}
}
