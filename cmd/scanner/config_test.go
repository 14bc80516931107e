package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig_FillsDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"discovery": {"method": "range", "ranges": ["192.0.2.0/24"], "ports": [25565]}
	}`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Scanner.Timeout != 5 {
		t.Errorf("expected default timeout 5, got %v", cfg.Scanner.Timeout)
	}
	if cfg.Scanner.RateLimit != 100 {
		t.Errorf("expected default rate_limit 100, got %v", cfg.Scanner.RateLimit)
	}
	if cfg.Concurrency.MaxConcurrent != 50 {
		t.Errorf("expected default max_concurrent 50, got %v", cfg.Concurrency.MaxConcurrent)
	}
	if cfg.GracePeriodSeconds != 30 {
		t.Errorf("expected default grace_period_seconds 30, got %v", cfg.GracePeriodSeconds)
	}
	if cfg.RefreshRate != 1 {
		t.Errorf("expected default refresh_rate 1, got %v", cfg.RefreshRate)
	}
}

func TestLoadConfig_RequiresDiscoveryFieldsPerMethod(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "range without ranges",
			body: `{"discovery": {"method": "range", "ports": [25565]}}`,
		},
		{
			name: "file without file_path",
			body: `{"discovery": {"method": "file", "ports": [25565]}}`,
		},
		{
			name: "external without command",
			body: `{"discovery": {"method": "external", "ports": [25565]}}`,
		},
		{
			name: "missing ports",
			body: `{"discovery": {"method": "range", "ranges": ["10.0.0.0/8"]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			if _, err := loadConfig(path); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown top-level key",
			body: `{
				"discovery": {"method": "range", "ranges": ["192.0.2.0/24"], "ports": [25565]},
				"bogus_top_level_field": true
			}`,
		},
		{
			name: "unknown nested key",
			body: `{
				"discovery": {"method": "range", "ranges": ["192.0.2.0/24"], "ports": [25565], "bogus_nested_field": 1}
			}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			if _, err := loadConfig(path); err == nil {
				t.Fatal("expected an error for an unknown config key")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestConfig_ProtocolIDs(t *testing.T) {
	var cfg Config
	cfg.Scanner.ProtocolVersion = 767
	if got := cfg.protocolIDs(); len(got) != 1 || got[0] != 767 {
		t.Fatalf("expected [767], got %v", got)
	}

	cfg.Scanner.ScanAllProtocols = true
	cfg.Scanner.ProtocolVersions = []int32{47, 340, 767}
	if got := cfg.protocolIDs(); len(got) != 3 {
		t.Fatalf("expected all configured protocol versions, got %v", got)
	}
}

func TestConfig_DialerConfig_DisabledByDefault(t *testing.T) {
	var cfg Config
	if cfg.dialerConfig() != nil {
		t.Fatal("expected a nil dialer config when proxy.enabled is false")
	}
}
