package factory

import (
	"context"
	"sync"
	"testing"

	"github.com/fieldwave/comsrv/internal/modbus"
)

type stubProtocol struct {
	mu        sync.Mutex
	connected bool
}

func (s *stubProtocol) Initialize(ctx context.Context, cfg RuntimeChannelConfig) error { return nil }
func (s *stubProtocol) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}
func (s *stubProtocol) Disconnect() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}
func (s *stubProtocol) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
func (s *stubProtocol) Status() Status                                       { return Status{} }
func (s *stubProtocol) Control(ctx context.Context, pointID string, v bool) error { return nil }
func (s *stubProtocol) Adjustment(ctx context.Context, pointID string, v float64) error {
	return nil
}
func (s *stubProtocol) StartPeriodicTasks(ctx context.Context) error  { return nil }
func (s *stubProtocol) StopPeriodicTasks() error                     { return nil }
func (s *stubProtocol) SetDataChannel(ch chan<- modbus.TelemetryBatch) {}
func (s *stubProtocol) SetCommandReceiver(ch <-chan Command)          {}

type stubBuilder struct{}

func (stubBuilder) ProtocolType() modbus.ProtocolType { return modbus.ModbusTCP }
func (stubBuilder) Build(channelID uint16) Protocol   { return &stubProtocol{} }

func TestCreateChannelConcurrentDuplicateExactlyOneSucceeds(t *testing.T) {
	RegisterBuilder(stubBuilder{})
	t.Cleanup(func() {
		buildersMu.Lock()
		delete(builders, modbus.ModbusTCP)
		buildersMu.Unlock()
	})

	mgr := NewManager(context.Background())
	cfg := RuntimeChannelConfig{ChannelConfig: ChannelConfig{ID: 1, Protocol: "ModbusTcp"}}

	const n = 20
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := mgr.CreateChannel(context.Background(), cfg)
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("want exactly 1 success out of %d concurrent creates, got %d", n, count)
	}
}

func TestStopChannelThenRecreateSucceeds(t *testing.T) {
	RegisterBuilder(stubBuilder{})
	t.Cleanup(func() {
		buildersMu.Lock()
		delete(builders, modbus.ModbusTCP)
		buildersMu.Unlock()
	})

	mgr := NewManager(context.Background())
	cfg := RuntimeChannelConfig{ChannelConfig: ChannelConfig{ID: 2, Protocol: "ModbusTcp"}}

	if _, err := mgr.CreateChannel(context.Background(), cfg); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := mgr.StopChannel(2); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := mgr.CreateChannel(context.Background(), cfg); err != nil {
		t.Fatalf("recreate after stop: %v", err)
	}
}

func TestGetChannelUnknown(t *testing.T) {
	mgr := NewManager(context.Background())
	if _, ok := mgr.GetChannel(99); ok {
		t.Error("expected not found for unknown channel")
	}
}
