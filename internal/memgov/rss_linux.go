//go:build linux

package memgov

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// sampleRSSBytes prefers /proc/self/statm (exact resident set size at
// the moment of the call); Getrusage's Maxrss is a historical peak,
// not current RSS, so it is only a fallback.
func sampleRSSBytes() (int64, error) {
	if rss, err := statmRSSBytes(); err == nil {
		return rss, nil
	}
	return getrusageMaxRSSBytes()
}

func statmRSSBytes() (int64, error) {
	f, err := os.Open("/proc/self/statm")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("memgov: empty /proc/self/statm")
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 {
		return 0, fmt.Errorf("memgov: malformed /proc/self/statm")
	}
	residentPages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, err
	}
	return residentPages * int64(os.Getpagesize()), nil
}

func getrusageMaxRSSBytes() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	// Linux reports Maxrss in KB.
	return ru.Maxrss * 1024, nil
}
