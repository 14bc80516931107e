package worker

import (
	"context"
	"encoding/json"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
	"github.com/LK-Customs/Pingcrafty/internal/dialer"
	"github.com/LK-Customs/Pingcrafty/internal/metrics"
	"github.com/LK-Customs/Pingcrafty/internal/pipeline"
	"github.com/LK-Customs/Pingcrafty/internal/protocol"
	"github.com/LK-Customs/Pingcrafty/internal/ratelimit"
	"github.com/LK-Customs/Pingcrafty/internal/result"
	"github.com/LK-Customs/Pingcrafty/internal/target"
	"github.com/LK-Customs/Pingcrafty/internal/wire"
	perrors "github.com/LK-Customs/Pingcrafty/pkg/errors"
)

type capturingHook struct {
	mu      sync.Mutex
	results []*result.ScanResult
}

func (h *capturingHook) Name() string                             { return "capture" }
func (h *capturingHook) Initialize(ctx context.Context) error      { return nil }
func (h *capturingHook) Finalize() error                           { return nil }
func (h *capturingHook) Process(ctx context.Context, r *result.ScanResult) (pipeline.Decision, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, r)
	return pipeline.Continue, nil
}

func (h *capturingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

// listenModernStatusServer starts a listener that answers every
// connection with a valid modern status response, and returns its
// host/port.
func listenModernStatusServer(t *testing.T) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				conn.Read(buf) // handshake + status request, contents unused by the fake server

				status := map[string]any{
					"version":     map[string]any{"name": "1.21", "protocol": 767},
					"players":     map[string]any{"online": 3, "max": 20},
					"description": "A fake server",
				}
				body, _ := json.Marshal(status)
				var pkt []byte
				pkt = wire.PutVarInt(pkt, 0x00)
				pkt = wire.PutVarString(pkt, string(body))
				conn.Write(wire.EncodePacket(pkt))
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), uint16(addr.Port)
}

func testPool(t *testing.T, hook pipeline.Hook) (*Pool, string, uint16) {
	t.Helper()
	host, port := listenModernStatusServer(t)

	d, err := dialer.New(nil)
	if err != nil {
		t.Fatalf("dialer.New: %v", err)
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{RateLimit: 1000, BurstAllowance: 1000, PerHostRateLimit: 1000})
	t.Cleanup(limiter.Stop)

	list, err := blacklist.New(blacklist.Config{Enabled: false})
	if err != nil {
		t.Fatalf("blacklist.New: %v", err)
	}

	pipe := pipeline.New([]pipeline.Hook{hook}, pipeline.Config{}, nil)
	if err := pipe.Initialize(context.Background()); err != nil {
		t.Fatalf("pipeline Initialize: %v", err)
	}
	t.Cleanup(func() { pipe.Finalize() })

	m := metrics.NewCollector()

	cfg := Config{
		Concurrency:           2,
		MaxConnectionsPerHost: 4,
		Protocol: protocol.Options{
			Timeout:     time.Second,
			Retries:     0,
			ProtocolIDs: []int32{767},
		},
	}
	pool := New(cfg, d, limiter, list, pipe, m, nil, nil)
	t.Cleanup(pool.hostPermits.Stop)
	return pool, host, port
}

func TestPool_SuccessfulProbeReachesPipeline(t *testing.T) {
	hook := &capturingHook{}
	pool, host, port := testPool(t, hook)

	targets := make(chan target.Target, 1)
	targets <- target.Target{Addr: netip.MustParseAddr(host), Port: port}
	close(targets)

	pool.Run(context.Background(), targets)

	if hook.count() != 1 {
		t.Fatalf("expected 1 result delivered to the pipeline, got %d", hook.count())
	}
	if pool.metrics.GetTotalSuccess() != 1 {
		t.Fatalf("expected 1 success counted, got %d", pool.metrics.GetTotalSuccess())
	}
}

func TestPool_RecordFailure_ResourceExhaustionBacksOffAndEscalates(t *testing.T) {
	hook := &capturingHook{}
	pool, _, _ := testPool(t, hook)

	var escalated int
	pool.onResourceExhaustion = func() { escalated++ }

	probeErr := perrors.NewProbeError(perrors.KindResourceExhaustion, "too many open files", nil)

	start := time.Now()
	pool.recordFailure(context.Background(), "127.0.0.1", 25565, probeErr)
	elapsed := time.Since(start)

	if escalated != 1 {
		t.Fatalf("expected onResourceExhaustion to be invoked once, got %d", escalated)
	}
	if elapsed < resourceExhaustionBackoff {
		t.Fatalf("expected at least a %s backoff, took %s", resourceExhaustionBackoff, elapsed)
	}
}

func TestPool_RecordFailure_ResourceExhaustionBackoffRespectsCancellation(t *testing.T) {
	hook := &capturingHook{}
	pool, _, _ := testPool(t, hook)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	probeErr := perrors.NewProbeError(perrors.KindResourceExhaustion, "too many open files", nil)

	start := time.Now()
	pool.recordFailure(ctx, "127.0.0.1", 25565, probeErr)
	if time.Since(start) >= resourceExhaustionBackoff {
		t.Fatal("expected cancellation to cut the backoff short")
	}
}

func TestPool_RefusedTargetCountsError(t *testing.T) {
	hook := &capturingHook{}
	pool, _, _ := testPool(t, hook)

	// Port 1 on loopback is refused virtually everywhere; the probe
	// should fail without reaching the pipeline.
	targets := make(chan target.Target, 1)
	targets <- target.Target{Addr: netip.MustParseAddr("127.0.0.1"), Port: 1}
	close(targets)

	pool.Run(context.Background(), targets)

	if hook.count() != 0 {
		t.Fatalf("expected no results delivered for a refused probe, got %d", hook.count())
	}
	if pool.metrics.GetTotalErrors() == 0 {
		t.Fatal("expected the refused probe to count as an error")
	}
}
