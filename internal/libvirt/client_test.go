package libvirt

import (
	"context"
	"testing"
	"time"
)

// connectOrSkip opens a live connection or skips the test: most of this
// package can only be exercised against a running libvirtd.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	c, err := Connect("", 0)
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}
	return c
}

func TestConnectAndPing(t *testing.T) {
	c := connectOrSkip(t)
	defer func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if c.Libvirt() == nil {
		t.Fatal("Libvirt() returned nil")
	}
	version, err := c.Libvirt().ConnectGetLibVersion()
	if err != nil {
		t.Fatalf("ConnectGetLibVersion failed: %v", err)
	}
	if version == 0 {
		t.Fatal("got library version 0, expected non-zero")
	}
}

func TestConnect_InvalidSocket(t *testing.T) {
	if _, err := Connect("/nonexistent/socket", 100*time.Millisecond); err == nil {
		t.Fatal("expected error connecting to nonexistent socket, got nil")
	}
}

func TestConnectWithContext_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ConnectWithContext(ctx, "", 0); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := connectOrSkip(t)

	if err := c.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{libvirt: nil}

	if err := c.Ping(); err == nil {
		t.Fatal("expected error from Ping on disconnected client, got nil")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on disconnected client failed: %v", err)
	}
}
