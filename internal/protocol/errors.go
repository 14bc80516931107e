package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	perrors "github.com/LK-Customs/Pingcrafty/pkg/errors"
)

// classifyDialError maps a dial-time error onto the taxonomy Kind the
// worker and pipeline act on.
func classifyDialError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return perrors.NewProbeError(perrors.KindTimeout, "dial timed out", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return perrors.NewProbeError(perrors.KindRefused, "connection refused", err)
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return perrors.NewProbeError(perrors.KindUnreachable, "host unreachable", err)
	}
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return perrors.NewProbeError(perrors.KindResourceExhaustion, "file descriptor exhaustion", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return perrors.NewProbeError(perrors.KindTimeout, "dial timed out", err)
	}
	return perrors.NewProbeError(perrors.KindUnreachable, "dial failed", err)
}

// classifyReadError maps a read-time error onto the taxonomy Kind.
func classifyReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return perrors.NewProbeError(perrors.KindReset, "connection closed before response completed", err)
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return perrors.NewProbeError(perrors.KindReset, "connection reset", err)
	}
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return perrors.NewProbeError(perrors.KindResourceExhaustion, "file descriptor exhaustion", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return perrors.NewProbeError(perrors.KindTimeout, "read timed out", err)
	}
	return perrors.NewProbeError(perrors.KindReset, "read failed", err)
}
