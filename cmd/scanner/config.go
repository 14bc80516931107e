package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
	"github.com/LK-Customs/Pingcrafty/internal/dialer"
	"github.com/LK-Customs/Pingcrafty/internal/memgov"
	"github.com/LK-Customs/Pingcrafty/internal/persistence"
	"github.com/LK-Customs/Pingcrafty/internal/protocol"
	"github.com/LK-Customs/Pingcrafty/internal/ratelimit"
)

// Config is the JSON-shaped configuration record, covering every
// section spec.md §6 enumerates. The CLI/YAML front-end that would
// normally produce this record is explicitly out of scope (spec.md §1
// Non-goals); this loader reads one JSON file with defaulting, same
// shape as a typical single-binary Go service.
type Config struct {
	Scanner struct {
		Timeout          float64 `json:"timeout"`
		ProtocolVersion  int32   `json:"protocol_version"`
		ScanAllProtocols bool    `json:"scan_all_protocols"`
		ProtocolVersions []int32 `json:"protocol_versions"`
		Retries          int     `json:"retries"`
		LegacySupport    bool    `json:"legacy_support"`
		RateLimit        float64 `json:"rate_limit"`
	} `json:"scanner"`

	Discovery struct {
		Method    string   `json:"method"` // range | file | external
		Ranges    []string `json:"ranges"`
		FilePath  string   `json:"file_path"`
		Command   []string `json:"command"`
		Ports     []int    `json:"ports"`
		BatchSize int      `json:"batch_size"`
	} `json:"discovery"`

	Concurrency struct {
		MaxConcurrent         int `json:"max_concurrent"`
		MaxConnectionsPerHost int `json:"max_connections_per_host"`
	} `json:"concurrency"`

	Memory struct {
		MaxMemoryMB      int64 `json:"max_memory_mb"`
		GCIntervalMs     int64 `json:"gc_interval"`
		EnableMonitoring bool  `json:"enable_monitoring"`
	} `json:"memory"`

	Blacklist struct {
		Enabled    bool   `json:"enabled"`
		AutoUpdate bool   `json:"auto_update"`
		FilePath   string `json:"file_path"`
	} `json:"blacklist"`

	Geolocation struct {
		Enabled       bool   `json:"enabled"`
		Provider      string `json:"provider"` // local | remote
		DatabasePath  string `json:"database_path"`
		CacheDuration int64  `json:"cache_duration"` // seconds
		Required      bool   `json:"required"`
	} `json:"geolocation"`

	Webhook struct {
		Enabled      bool   `json:"enabled"`
		URL          string `json:"url"`
		BatchSize    int    `json:"batch_size"`
		IncludeStats bool   `json:"include_stats"`
	} `json:"webhook"`

	Advanced struct {
		EnableTCPNoDelay   bool `json:"enable_tcp_nodelay"`
		SocketKeepalive    bool `json:"socket_keepalive"`
		RandomizeScanOrder bool `json:"randomize_scan_order"`
		SkipPrivateRanges  bool `json:"skip_private_ranges"`
		SkipReservedRanges bool `json:"skip_reserved_ranges"`
	} `json:"advanced"`

	// Persistence and egress are collaborators at the sink/dialer
	// interface (spec.md §1/§6); their concrete settings still need a
	// home in the one JSON file this loader reads.
	Persistence struct {
		Path     string `json:"path"`
		PoolSize int    `json:"pool_size"`
	} `json:"persistence"`

	Proxy struct {
		Enabled  bool   `json:"enabled"`
		Type     string `json:"type"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"proxy"`

	HTTP struct {
		Listen string `json:"listen"` // empty disables the status/metrics server
	} `json:"http"`

	GracePeriodSeconds int     `json:"grace_period_seconds"`
	RefreshRate        float64 `json:"refresh_rate"`
}

// loadConfig reads and validates path, filling in defaults. Unknown
// keys are rejected rather than silently ignored (spec.md §6).
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Scanner.Timeout == 0 {
		cfg.Scanner.Timeout = 5
	}
	if cfg.Scanner.RateLimit == 0 {
		cfg.Scanner.RateLimit = 100
	}
	if cfg.Discovery.Method == "" {
		cfg.Discovery.Method = "range"
	}
	if cfg.Discovery.BatchSize == 0 {
		cfg.Discovery.BatchSize = 100
	}
	if cfg.Concurrency.MaxConcurrent == 0 {
		cfg.Concurrency.MaxConcurrent = 50
	}
	if cfg.Concurrency.MaxConnectionsPerHost == 0 {
		cfg.Concurrency.MaxConnectionsPerHost = 4
	}
	if cfg.Persistence.Path == "" {
		cfg.Persistence.Path = "scanner.db"
	}
	if cfg.Persistence.PoolSize == 0 {
		cfg.Persistence.PoolSize = 4
	}
	if cfg.GracePeriodSeconds == 0 {
		cfg.GracePeriodSeconds = 30
	}
	if cfg.RefreshRate == 0 {
		cfg.RefreshRate = 1
	}

	if cfg.Discovery.Method == "range" && len(cfg.Discovery.Ranges) == 0 {
		return nil, fmt.Errorf("discovery.ranges is required for method \"range\"")
	}
	if cfg.Discovery.Method == "file" && cfg.Discovery.FilePath == "" {
		return nil, fmt.Errorf("discovery.file_path is required for method \"file\"")
	}
	if cfg.Discovery.Method == "external" && len(cfg.Discovery.Command) == 0 {
		return nil, fmt.Errorf("discovery.command is required for method \"external\"")
	}
	if len(cfg.Discovery.Ports) == 0 {
		return nil, fmt.Errorf("discovery.ports is required")
	}

	return &cfg, nil
}

func (c *Config) protocolIDs() []int32 {
	if c.Scanner.ScanAllProtocols && len(c.Scanner.ProtocolVersions) > 0 {
		return c.Scanner.ProtocolVersions
	}
	if c.Scanner.ProtocolVersion != 0 {
		return []int32{c.Scanner.ProtocolVersion}
	}
	return nil
}

func (c *Config) protocolOptions() protocol.Options {
	return protocol.Options{
		Timeout:       time.Duration(c.Scanner.Timeout * float64(time.Second)),
		Retries:       c.Scanner.Retries,
		ProtocolIDs:   c.protocolIDs(),
		LegacySupport: c.Scanner.LegacySupport,
	}
}

func (c *Config) rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		RateLimit:        c.Scanner.RateLimit,
		BurstAllowance:   c.Scanner.RateLimit,
		PerHostRateLimit: c.Scanner.RateLimit,
	}
}

func (c *Config) memoryConfig() memgov.Config {
	return memgov.Config{MaxMemoryMB: c.Memory.MaxMemoryMB}
}

func (c *Config) blacklistConfig() blacklist.Config {
	return blacklist.Config{
		Enabled:    c.Blacklist.Enabled,
		FilePath:   c.Blacklist.FilePath,
		AutoUpdate: c.Blacklist.AutoUpdate,
	}
}

func (c *Config) geoCacheDuration() time.Duration {
	if c.Geolocation.CacheDuration <= 0 {
		return time.Hour
	}
	return time.Duration(c.Geolocation.CacheDuration) * time.Second
}

func (c *Config) sinkConfig() persistence.Config {
	return persistence.Config{Path: c.Persistence.Path, PoolSize: c.Persistence.PoolSize}
}

func (c *Config) dialerConfig() *dialer.Config {
	if !c.Proxy.Enabled {
		return nil
	}
	return &dialer.Config{
		Enabled:  true,
		Type:     c.Proxy.Type,
		Host:     c.Proxy.Host,
		Port:     c.Proxy.Port,
		Username: c.Proxy.Username,
		Password: c.Proxy.Password,
	}
}

func (c *Config) ports() []uint16 {
	ports := make([]uint16, len(c.Discovery.Ports))
	for i, p := range c.Discovery.Ports {
		ports[i] = uint16(p)
	}
	return ports
}
