package pipeline

import (
	"context"

	"github.com/LK-Customs/Pingcrafty/internal/geo"
	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// EnrichHook attaches geolocation to a result via a TTL cache over a
// geo.Provider (local MaxMind-style database or remote IP-API).
// Lookup failures are logged and non-fatal — geolocation is a nice to
// have, never a reason to drop a result.
type EnrichHook struct {
	cache *geo.Cache
}

// NewEnrichHook wraps an already-constructed geolocation cache.
func NewEnrichHook(cache *geo.Cache) *EnrichHook {
	return &EnrichHook{cache: cache}
}

func (h *EnrichHook) Name() string { return "enrich" }

func (h *EnrichHook) Initialize(ctx context.Context) error { return nil }

func (h *EnrichHook) Process(ctx context.Context, r *result.ScanResult) (Decision, error) {
	if h.cache == nil {
		return Continue, nil
	}
	loc, err := h.cache.Lookup(ctx, r.IP)
	if err != nil {
		return Continue, err
	}
	r.GeoCountryCode = loc.CountryCode
	r.GeoCity = loc.City
	return Continue, nil
}

func (h *EnrichHook) Finalize() error { return nil }
