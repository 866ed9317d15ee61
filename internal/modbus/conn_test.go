package modbus

import (
	"context"
	"net"
	"testing"
	"time"
)

// TestScenarioS5ReconnectCooldown covers scenario S5: when no listener is
// present, ConnectWithRetry exhausts its burst and reports Failed after
// waiting out the cooldown, without hanging past it.
func TestScenarioS5ReconnectCooldown(t *testing.T) {
	dial := TCPDialer("127.0.0.1:1", 50*time.Millisecond)
	conn := NewConnection(dial)

	start := time.Now()
	err := conn.ConnectWithRetry(context.Background(), 3, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error from unreachable dialer")
	}
	if conn.State() != Failed {
		t.Errorf("want state Failed got %v", conn.State())
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("expected cooldown to have elapsed, took %v", elapsed)
	}
}

func TestConnectWithRetrySucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	dial := TCPDialer(ln.Addr().String(), time.Second)
	conn := NewConnection(dial)
	if err := conn.ConnectWithRetry(context.Background(), 3, time.Second); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !conn.IsConnected() {
		t.Error("expected connected state")
	}
}

func TestConnectWithRetryContextCancel(t *testing.T) {
	dial := TCPDialer("127.0.0.1:1", 20*time.Millisecond)
	conn := NewConnection(dial)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := conn.ConnectWithRetry(ctx, 5, time.Second)
	if err == nil {
		t.Fatal("expected context-cancellation error")
	}
}
