package dialer

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestNew_Disabled(t *testing.T) {
	d, err := New(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.IsEnabled() {
		t.Error("expected disabled dialer")
	}
	if d.Address() != "" {
		t.Errorf("expected empty address, got %q", d.Address())
	}
}

func TestNew_NilConfig(t *testing.T) {
	d, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.IsEnabled() {
		t.Error("expected disabled dialer for nil config")
	}
}

func TestNew_SOCKS5(t *testing.T) {
	d, err := New(&Config{
		Enabled: true,
		Type:    "socks5",
		Host:    "127.0.0.1",
		Port:    1080,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !d.IsEnabled() {
		t.Error("expected enabled dialer")
	}
	if d.Address() != "127.0.0.1:1080" {
		t.Errorf("got %q", d.Address())
	}
}

func TestNew_SOCKS5WithAuth(t *testing.T) {
	d, err := New(&Config{
		Enabled:  true,
		Type:     "socks5",
		Host:     "127.0.0.1",
		Port:     1080,
		Username: "user",
		Password: "pass",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !d.IsEnabled() {
		t.Error("expected enabled dialer")
	}
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(&Config{Enabled: true, Type: "http", Host: "127.0.0.1", Port: 8080})
	if err == nil {
		t.Fatal("expected error for unsupported proxy type")
	}
}

func TestNew_MissingHost(t *testing.T) {
	_, err := New(&Config{Enabled: true, Type: "socks5", Port: 1080})
	if err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestDialContext_DirectSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	d, err := New(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	conn.Close()
}

func TestDialContext_RespectsCancellation(t *testing.T) {
	d, err := New(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 192.0.2.0/24 is reserved for documentation (unroutable), so the
	// direct dialer may also fail for its own reasons; the point is
	// DialContext must not hang past the canceled context.
	done := make(chan struct{})
	go func() {
		d.DialContext(ctx, "tcp", "192.0.2.1:25565")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DialContext did not return promptly after context cancellation")
	}
}
