// Package dialer provides the connection strategy a probe uses to
// reach a target: a direct dial by default, or an optional SOCKS5
// egress proxy for dialing arbitrary scan targets.
package dialer

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Config selects and configures the egress path.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Type     string `json:"type"` // must be "socks5"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Dialer wraps either a direct net.Dialer or a SOCKS5 proxy dialer
// behind a single DialContext entry point.
type Dialer struct {
	cfg    *Config
	dialer proxy.Dialer
}

// New creates a Dialer from cfg. A nil or disabled cfg yields a direct
// dialer with a 10s default connect timeout.
func New(cfg *Config) (*Dialer, error) {
	if cfg == nil || !cfg.Enabled {
		return &Dialer{
			cfg:    &Config{},
			dialer: &net.Dialer{Timeout: 10 * time.Second},
		}, nil
	}

	if cfg.Type != "socks5" {
		return nil, fmt.Errorf("dialer: unsupported proxy type %q (must be \"socks5\")", cfg.Type)
	}
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("dialer: proxy host and port are required when enabled")
	}

	authURL := &url.URL{
		Scheme: "socks5",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	if cfg.Username != "" {
		authURL.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	d, err := proxy.FromURL(authURL, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("dialer: creating socks5 dialer: %w", err)
	}

	return &Dialer{cfg: cfg, dialer: d}, nil
}

// DialContext connects to address over network ("tcp"), honoring ctx's
// deadline/cancellation even when the underlying dialer predates
// context support.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if ctxDialer, ok := d.dialer.(interface {
		DialContext(context.Context, string, string) (net.Conn, error)
	}); ok {
		return ctxDialer.DialContext(ctx, network, address)
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := d.dialer.Dial(network, address)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsEnabled reports whether egress goes through a SOCKS5 proxy.
func (d *Dialer) IsEnabled() bool {
	return d.cfg.Enabled
}

// Address returns the proxy address, or "" when dialing direct.
func (d *Dialer) Address() string {
	if !d.cfg.Enabled {
		return ""
	}
	return fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
}
