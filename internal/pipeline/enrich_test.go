package pipeline

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/geo"
)

type stubGeoProvider struct{}

func (stubGeoProvider) Lookup(ctx context.Context, addr netip.Addr) (geo.Location, error) {
	return geo.Location{CountryCode: "US", City: "Columbus"}, nil
}

func TestEnrichHook_AttachesLocation(t *testing.T) {
	cache := geo.NewCache(stubGeoProvider{}, time.Minute)
	defer cache.Stop()
	h := NewEnrichHook(cache)

	r := newResult("192.0.2.1")
	decision, err := h.Process(context.Background(), r)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if decision != Continue {
		t.Fatalf("expected Continue, got %v", decision)
	}
	if r.GeoCountryCode != "US" || r.GeoCity != "Columbus" {
		t.Fatalf("expected geolocation attached, got %+v", r)
	}
}

func TestEnrichHook_NilCacheIsNoop(t *testing.T) {
	h := NewEnrichHook(nil)
	r := newResult("192.0.2.1")
	decision, err := h.Process(context.Background(), r)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if decision != Continue {
		t.Fatalf("expected Continue, got %v", decision)
	}
	if r.GeoCountryCode != "" {
		t.Fatalf("expected no geolocation attached, got %+v", r)
	}
}
