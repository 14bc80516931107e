package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"time"
)

// LocalProvider defers to an embedder-supplied lookup function backed
// by a MaxMind-format database; this package does not parse that
// format (spec.md treats it as an external collaborator referenced
// only at this interface).
type LocalProvider struct {
	lookup func(netip.Addr) (Location, error)
}

// NewLocalProvider validates that databasePath exists (without
// parsing it) and binds lookup as the resolution function. A missing
// database surfaces as a dependency-initialization error the
// orchestrator treats per spec.md §7: skip-with-warning unless
// required=true.
func NewLocalProvider(databasePath string, lookup func(netip.Addr) (Location, error)) (*LocalProvider, error) {
	if _, err := os.Stat(databasePath); err != nil {
		return nil, fmt.Errorf("geo: local database %q: %w", databasePath, err)
	}
	return &LocalProvider{lookup: lookup}, nil
}

func (p *LocalProvider) Lookup(_ context.Context, addr netip.Addr) (Location, error) {
	return p.lookup(addr)
}

// RemoteProvider queries an IP-API-compatible HTTP endpoint.
type RemoteProvider struct {
	baseURL string
	client  *http.Client
}

// NewRemoteProvider builds a RemoteProvider against baseURL (e.g.
// "http://ip-api.com/json"), the address appended as a path segment.
func NewRemoteProvider(baseURL string, timeout time.Duration) *RemoteProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteProvider{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type remoteResponse struct {
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Status      string  `json:"status"`
	Message     string  `json:"message"`
}

func (p *RemoteProvider) Lookup(ctx context.Context, addr netip.Addr) (Location, error) {
	url := p.baseURL + "/" + addr.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo: remote provider returned %s", resp.Status)
	}

	var rr remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return Location{}, fmt.Errorf("geo: decoding remote response: %w", err)
	}
	if rr.Status == "fail" {
		return Location{}, fmt.Errorf("geo: remote lookup failed: %s", rr.Message)
	}

	return Location{CountryCode: rr.CountryCode, City: rr.City, Latitude: rr.Lat, Longitude: rr.Lon}, nil
}
