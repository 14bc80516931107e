package memgov

import "testing"

func TestSampleRSSBytes_ReturnsPositiveValue(t *testing.T) {
	rss, err := sampleRSSBytes()
	if err != nil {
		t.Fatalf("sampleRSSBytes: %v", err)
	}
	if rss <= 0 {
		t.Errorf("expected positive RSS, got %d", rss)
	}
}

func TestGovernor_ThrottleHysteresis(t *testing.T) {
	var evictions, shutdowns int
	g := New(Config{MaxMemoryMB: 100}, func() { evictions++ }, func() { shutdowns++ })

	setRSSAndSample := func(bytes int64) {
		g.evaluate(bytes)
	}

	maxBytes := int64(100) * 1024 * 1024

	setRSSAndSample(int64(float64(maxBytes) * 0.50))
	if g.Throttled() {
		t.Error("expected not throttled at 50%")
	}

	setRSSAndSample(int64(float64(maxBytes) * 0.90))
	if !g.Throttled() {
		t.Error("expected throttled at 90%")
	}

	setRSSAndSample(int64(float64(maxBytes) * 0.80))
	if !g.Throttled() {
		t.Error("expected still throttled at 80% (hysteresis band)")
	}

	setRSSAndSample(int64(float64(maxBytes) * 0.60))
	if g.Throttled() {
		t.Error("expected throttle released below 70%")
	}

	setRSSAndSample(int64(float64(maxBytes) * 0.97))
	if evictions != 1 {
		t.Errorf("expected exactly 1 eviction callback, got %d", evictions)
	}

	setRSSAndSample(maxBytes + 1)
	if shutdowns != 1 {
		t.Errorf("expected exactly 1 shutdown callback, got %d", shutdowns)
	}
}
