// Package blacklist implements a copy-on-write, auto-reloading
// address/CIDR denylist backed by two binary radix tries (v4 and v6),
// with longest-prefix-match lookup.
package blacklist

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config configures the blacklist's file backing and auto-reload.
type Config struct {
	Enabled    bool   `json:"enabled"`
	FilePath   string `json:"file_path"`
	AutoUpdate bool   `json:"auto_update"`
}

// pollInterval is how often auto_update checks the backing file's
// mtime, per spec.md §4.8.
const pollInterval = 30 * time.Second

type tries struct {
	v4 *radixTrie
	v6 *radixTrie
}

// Blacklist answers Contains(addr) against the current trie snapshot,
// swapped atomically on reload.
type Blacklist struct {
	cfg Config

	current atomic.Pointer[tries]

	mu      sync.Mutex
	modTime time.Time

	stopPoll chan struct{}
}

// New loads cfg.FilePath (if Enabled) and, if AutoUpdate, starts the
// mtime-poll goroutine. A disabled or path-less config yields a
// Blacklist whose Contains always returns false.
func New(cfg Config) (*Blacklist, error) {
	bl := &Blacklist{cfg: cfg, stopPoll: make(chan struct{})}
	bl.current.Store(&tries{v4: newRadixTrie(), v6: newRadixTrie()})

	if !cfg.Enabled || cfg.FilePath == "" {
		return bl, nil
	}

	if err := bl.reload(); err != nil {
		return nil, fmt.Errorf("blacklist: initial load: %w", err)
	}

	if cfg.AutoUpdate {
		go bl.pollLoop()
	}
	return bl, nil
}

// Contains reports whether addr (or a covering prefix) is
// blacklisted.
func (bl *Blacklist) Contains(addr netip.Addr) bool {
	t := bl.current.Load()
	if addr.Is4() {
		return t.v4.contains(addr)
	}
	return t.v6.contains(addr)
}

func (bl *Blacklist) reload() error {
	f, err := os.Open(bl.cfg.FilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	next := &tries{v4: newRadixTrie(), v6: newRadixTrie()}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := addEntry(next, line); err != nil {
			return fmt.Errorf("blacklist: entry %q: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	bl.current.Store(next)
	bl.mu.Lock()
	bl.modTime = stat.ModTime()
	bl.mu.Unlock()
	return nil
}

func addEntry(t *tries, line string) error {
	if strings.Contains(line, "/") {
		prefix, err := netip.ParsePrefix(line)
		if err != nil {
			return err
		}
		prefix = prefix.Masked()
		if prefix.Addr().Is4() {
			t.v4.insert(prefix.Addr(), prefix.Bits())
		} else {
			t.v6.insert(prefix.Addr(), prefix.Bits())
		}
		return nil
	}
	addr, err := netip.ParseAddr(line)
	if err != nil {
		return err
	}
	if addr.Is4() {
		t.v4.insert(addr, 32)
	} else {
		t.v6.insert(addr, 128)
	}
	return nil
}

func (bl *Blacklist) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stat, err := os.Stat(bl.cfg.FilePath)
			if err != nil {
				continue
			}
			bl.mu.Lock()
			changed := stat.ModTime().After(bl.modTime)
			bl.mu.Unlock()
			if changed {
				_ = bl.reload()
			}
		case <-bl.stopPoll:
			return
		}
	}
}

// Stop ends the auto-reload poll goroutine, if running.
func (bl *Blacklist) Stop() {
	select {
	case <-bl.stopPoll:
	default:
		close(bl.stopPoll)
	}
}
