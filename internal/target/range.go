package target

import (
	"context"
	"fmt"
	"math/rand"
	"net/netip"
	"strings"
	"sync"
)

// RangeConfig configures a RangeSource.
type RangeConfig struct {
	// Ranges is a list of CIDR blocks ("10.0.0.0/8") or explicit
	// address ranges ("10.0.0.1-10.0.0.254"), v4 or v6.
	Ranges []string
	Ports  []uint16

	SkipPrivateRanges  bool
	SkipReservedRanges bool

	// RandomizeScanOrder shuffles targets within batches of BatchSize
	// using a seeded Fisher-Yates shuffle; iteration order across
	// batches stays sequential (full-universe shuffling is not
	// required).
	RandomizeScanOrder bool
	Seed               int64
	BatchSize          int
}

type addrBlock struct {
	start, end netip.Addr
}

// RangeSource expands a cartesian product of address ranges × ports
// into a lazy Target sequence.
type RangeSource struct {
	mu sync.Mutex

	blocks   []addrBlock
	blockIdx int
	cur      netip.Addr
	curValid bool

	ports   []uint16
	portIdx int

	skipPrivate  bool
	skipReserved bool

	randomize bool
	rng       *rand.Rand
	batchSize int
	buffer    []Target
	bufferPos int
	exhausted bool
}

// NewRangeSource parses cfg into a ready RangeSource.
func NewRangeSource(cfg RangeConfig) (*RangeSource, error) {
	if len(cfg.Ports) == 0 {
		return nil, fmt.Errorf("target: range source requires at least one port")
	}
	blocks := make([]addrBlock, 0, len(cfg.Ranges))
	for _, r := range cfg.Ranges {
		b, err := parseBlock(r)
		if err != nil {
			return nil, fmt.Errorf("target: parsing range %q: %w", r, err)
		}
		blocks = append(blocks, b)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("target: range source requires at least one range")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1024
	}

	rs := &RangeSource{
		blocks:       blocks,
		ports:        cfg.Ports,
		skipPrivate:  cfg.SkipPrivateRanges,
		skipReserved: cfg.SkipReservedRanges,
		randomize:    cfg.RandomizeScanOrder,
		batchSize:    batchSize,
	}
	if rs.randomize {
		rs.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	if len(blocks) > 0 {
		rs.cur = blocks[0].start
		rs.curValid = true
	}
	return rs, nil
}

// parseBlock accepts a CIDR ("10.0.0.0/8") or an explicit hyphenated
// range ("10.0.0.1-10.0.0.254").
func parseBlock(s string) (addrBlock, error) {
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return addrBlock{}, err
		}
		prefix = prefix.Masked()
		return addrBlock{start: prefix.Addr(), end: lastAddrInPrefix(prefix)}, nil
	}
	if idx := strings.Index(s, "-"); idx >= 0 {
		start, err := netip.ParseAddr(strings.TrimSpace(s[:idx]))
		if err != nil {
			return addrBlock{}, err
		}
		end, err := netip.ParseAddr(strings.TrimSpace(s[idx+1:]))
		if err != nil {
			return addrBlock{}, err
		}
		if end.Less(start) {
			return addrBlock{}, fmt.Errorf("range end precedes start")
		}
		return addrBlock{start: start, end: end}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return addrBlock{}, err
	}
	return addrBlock{start: addr, end: addr}, nil
}

func lastAddrInPrefix(p netip.Prefix) netip.Addr {
	addr := p.Addr()
	bits := addr.BitLen()
	bytes := addr.As16()
	if addr.Is4() {
		b4 := addr.As4()
		bytes = [16]byte{}
		copy(bytes[:4], b4[:])
		bits = 32
	}
	ones := p.Bits()
	for i := ones; i < bits; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		bytes[byteIdx] |= 1 << bitIdx
	}
	if addr.Is4() {
		var b4 [4]byte
		copy(b4[:], bytes[:4])
		return netip.AddrFrom4(b4)
	}
	return netip.AddrFrom16(bytes)
}

// Count returns the upper-bound cartesian-product size (addresses ×
// ports) across every configured range, ignoring private/reserved
// filtering. Used by the orchestrator to seed its ETA estimate; the
// true yield may be lower once filtered addresses are skipped.
func (rs *RangeSource) Count() uint64 {
	var addrs uint64
	for _, b := range rs.blocks {
		addrs += addrSpan(b.start, b.end)
	}
	return addrs * uint64(len(rs.ports))
}

func addrSpan(start, end netip.Addr) uint64 {
	if start.Is4() {
		s := start.As4()
		e := end.As4()
		return uint64(beUint32(e)-beUint32(s)) + 1
	}
	// v6 spans can exceed uint64; callers only use Count() for an ETA
	// estimate, so saturate rather than overflow.
	sHi, sLo := beUint64Pair(start)
	eHi, eLo := beUint64Pair(end)
	if eHi != sHi {
		return ^uint64(0)
	}
	return eLo - sLo + 1
}

func beUint32(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint64Pair(addr netip.Addr) (hi, lo uint64) {
	b := addr.As16()
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	return hi, lo
}

// Next returns the next target, applying private/reserved filtering
// and (if configured) batch-level shuffling.
func (rs *RangeSource) Next(ctx context.Context) (Target, bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.randomize {
		return rs.nextRandomized(ctx)
	}
	return rs.nextSequential(ctx)
}

func (rs *RangeSource) nextSequential(ctx context.Context) (Target, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return Target{}, false, ctx.Err()
		default:
		}
		addr, port, ok := rs.advance()
		if !ok {
			return Target{}, false, nil
		}
		if rs.isFiltered(addr) {
			continue
		}
		return Target{Addr: addr, Port: port}, true, nil
	}
}

func (rs *RangeSource) nextRandomized(ctx context.Context) (Target, bool, error) {
	if rs.bufferPos < len(rs.buffer) {
		tgt := rs.buffer[rs.bufferPos]
		rs.bufferPos++
		return tgt, true, nil
	}
	if rs.exhausted {
		return Target{}, false, nil
	}

	rs.buffer = rs.buffer[:0]
	rs.bufferPos = 0
	for len(rs.buffer) < rs.batchSize {
		select {
		case <-ctx.Done():
			return Target{}, false, ctx.Err()
		default:
		}
		addr, port, ok := rs.advance()
		if !ok {
			rs.exhausted = true
			break
		}
		if rs.isFiltered(addr) {
			continue
		}
		rs.buffer = append(rs.buffer, Target{Addr: addr, Port: port})
	}
	rs.rng.Shuffle(len(rs.buffer), func(i, j int) {
		rs.buffer[i], rs.buffer[j] = rs.buffer[j], rs.buffer[i]
	})

	if len(rs.buffer) == 0 {
		return Target{}, false, nil
	}
	tgt := rs.buffer[0]
	rs.bufferPos = 1
	return tgt, true, nil
}

// advance walks the (block, address, port) cursor forward one step
// and returns the tuple it was pointing at, or ok=false when the
// entire cartesian product has been consumed.
func (rs *RangeSource) advance() (netip.Addr, uint16, bool) {
	if !rs.curValid {
		return netip.Addr{}, 0, false
	}

	addr := rs.cur
	port := rs.ports[rs.portIdx]

	rs.portIdx++
	if rs.portIdx >= len(rs.ports) {
		rs.portIdx = 0
		block := rs.blocks[rs.blockIdx]
		if rs.cur == block.end {
			rs.blockIdx++
			if rs.blockIdx >= len(rs.blocks) {
				rs.curValid = false
			} else {
				rs.cur = rs.blocks[rs.blockIdx].start
			}
		} else {
			rs.cur = rs.cur.Next()
		}
	}

	return addr, port, true
}

var privatePrefixesV4 = mustParsePrefixes(
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "169.254.0.0/16",
)

var reservedPrefixesV4 = mustParsePrefixes(
	"0.0.0.0/8", "100.64.0.0/10", "192.0.0.0/24", "192.0.2.0/24", "198.18.0.0/15",
	"198.51.100.0/24", "203.0.113.0/24", "224.0.0.0/4", "240.0.0.0/4", "255.255.255.255/32",
)

var privatePrefixesV6 = mustParsePrefixes("fc00::/7", "fe80::/10", "::1/128")

var reservedPrefixesV6 = mustParsePrefixes("::/128", "100::/64", "2001:db8::/32", "ff00::/8")

func mustParsePrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

func (rs *RangeSource) isFiltered(addr netip.Addr) bool {
	private, reserved := privatePrefixesV4, reservedPrefixesV4
	if addr.Is6() && !addr.Is4In6() {
		private, reserved = privatePrefixesV6, reservedPrefixesV6
	}
	if rs.skipPrivate {
		for _, p := range private {
			if p.Contains(addr) {
				return true
			}
		}
	}
	if rs.skipReserved {
		for _, p := range reserved {
			if p.Contains(addr) {
				return true
			}
		}
	}
	return false
}
