//go:build !linux

package memgov

import "golang.org/x/sys/unix"

// sampleRSSBytes falls back to Getrusage's Maxrss on non-Linux
// platforms (no /proc filesystem). On Darwin and most BSDs this field
// is reported in bytes already, unlike Linux's KB convention.
func sampleRSSBytes() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return int64(ru.Maxrss), nil
}
