package protocol

import (
	"errors"
	"syscall"
	"testing"

	perrors "github.com/LK-Customs/Pingcrafty/pkg/errors"
)

func TestClassifyDialError_ResourceExhaustion(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE} {
		got := classifyDialError(errno)
		var probeErr *perrors.ProbeError
		if !errors.As(got, &probeErr) || probeErr.Kind != perrors.KindResourceExhaustion {
			t.Fatalf("classifyDialError(%v): expected KindResourceExhaustion, got %v", errno, got)
		}
	}
}

func TestClassifyReadError_ResourceExhaustion(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE} {
		got := classifyReadError(errno)
		var probeErr *perrors.ProbeError
		if !errors.As(got, &probeErr) || probeErr.Kind != perrors.KindResourceExhaustion {
			t.Fatalf("classifyReadError(%v): expected KindResourceExhaustion, got %v", errno, got)
		}
	}
}
