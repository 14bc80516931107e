// Package target defines the Target tuple and the lazy Source
// interface that feeds the worker pool: range/CIDR expansion, file
// lists, and an external discovery-tool collaborator.
package target

import (
	"context"
	"net/netip"
)

// Target is an immutable (address, port) tuple, optionally carrying a
// hostname to advertise in the handshake if different from the IP.
type Target struct {
	Addr     netip.Addr
	Port     uint16
	Hostname string
}

// Source produces a lazy, possibly-infinite sequence of targets.
// Next returns (target, true, nil) for each element, (zero, false,
// nil) when the sequence is exhausted, or a non-nil error on failure.
type Source interface {
	Next(ctx context.Context) (Target, bool, error)
}
