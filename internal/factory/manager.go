package factory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldwave/comsrv/internal/modbus"
)

// entryState tracks a channel slot through its build so concurrent
// creates can tell a reservation-in-progress from a missing channel.
type entryState int

const (
	stateReserved entryState = iota
	stateReady
	stateFailed
)

// ChannelEntry is one running channel: its protocol client plus the
// bookkeeping the manager needs to serve start/stop/get/cleanup.
type ChannelEntry struct {
	ChannelID uint16
	Protocol  Protocol
	cancel    context.CancelFunc

	mu    sync.Mutex
	state entryState
	ready chan struct{}
}

// Manager is the channel factory's registry: map[channel_id]*ChannelEntry
// under a single sync.Mutex, atomic create (reserve-then-build) so two
// concurrent CreateChannel calls for the same id never both succeed.
//
// The teacher's core.InstanceManager builds the instance (factory.New +
// Init, both potentially slow/blocking) and only locks afterward to
// insert it — a classic check-then-act race: two concurrent creates for
// the same id can both build a live instance, and whichever insert runs
// last silently wins, leaking the other's goroutines. This manager locks
// a placeholder *before* building, so the loser observes the
// reservation and fails immediately instead of racing to completion.
type Manager struct {
	mu       sync.Mutex
	channels map[uint16]*ChannelEntry
	rootCtx  context.Context
}

func NewManager(rootCtx context.Context) *Manager {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	return &Manager{
		channels: make(map[uint16]*ChannelEntry),
		rootCtx:  rootCtx,
	}
}

// CreateChannel builds and initializes a channel's protocol client.
// Exactly one of two concurrent calls with the same channel id succeeds;
// the other returns ErrChannelExists without having built anything.
func (m *Manager) CreateChannel(ctx context.Context, cfg RuntimeChannelConfig) (*ChannelEntry, error) {
	protocolType, ok := modbus.ParseProtocolType(cfg.Protocol)
	if !ok {
		return nil, fmt.Errorf("factory: unknown protocol %q", cfg.Protocol)
	}
	builder, ok := GetBuilder(protocolType)
	if !ok {
		return nil, fmt.Errorf("factory: no builder registered for protocol %s", protocolType)
	}

	entry := &ChannelEntry{ChannelID: cfg.ID, state: stateReserved, ready: make(chan struct{})}

	m.mu.Lock()
	if _, exists := m.channels[cfg.ID]; exists {
		m.mu.Unlock()
		return nil, &ErrChannelExists{ChannelID: cfg.ID}
	}
	m.channels[cfg.ID] = entry
	m.mu.Unlock()

	// Build outside the lock: only the reservation above was exclusive,
	// so a slow Initialize here never blocks unrelated channels.
	protocol := builder.Build(cfg.ID)
	childCtx, cancel := context.WithCancel(m.rootCtx)
	if err := protocol.Initialize(childCtx, cfg); err != nil {
		cancel()
		m.mu.Lock()
		delete(m.channels, cfg.ID)
		m.mu.Unlock()
		entry.mu.Lock()
		entry.state = stateFailed
		entry.mu.Unlock()
		close(entry.ready)
		return nil, fmt.Errorf("factory: initialize channel %d: %w", cfg.ID, err)
	}

	entry.mu.Lock()
	entry.Protocol = protocol
	entry.cancel = cancel
	entry.state = stateReady
	entry.mu.Unlock()
	close(entry.ready)

	return entry, nil
}

// GetChannel returns the entry for id, waiting for an in-flight
// reservation to finish building before reporting not-found.
func (m *Manager) GetChannel(id uint16) (*ChannelEntry, bool) {
	m.mu.Lock()
	entry, ok := m.channels[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	<-entry.ready
	entry.mu.Lock()
	ready := entry.state == stateReady
	entry.mu.Unlock()
	return entry, ready
}

// StopChannel cancels a channel's context and removes it from the
// registry. Idempotent: stopping an unknown id is a no-op.
func (m *Manager) StopChannel(id uint16) error {
	m.mu.Lock()
	entry, ok := m.channels[id]
	if ok {
		delete(m.channels, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	<-entry.ready
	if entry.cancel != nil {
		entry.cancel()
	}
	if entry.Protocol != nil {
		return entry.Protocol.Disconnect()
	}
	return nil
}

// StopAll stops every channel concurrently, returning once all have
// finished (mirrors the teacher's DestroyAll, parallelized).
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]uint16, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			_ = m.StopChannel(id)
		}(id)
	}
	wg.Wait()
}

// UpdateChannelConfig replaces a channel's config: the old protocol is
// stopped and removed (StopChannel), then a fresh one is built from cfg
// through the same reserve-then-build path CreateChannel uses, matching
// the teacher's restart-on-any-change UpdateConfig. The stop and the
// create are separate steps, not one critical section: a concurrent
// CreateChannel for the same id that runs between them wins, and this
// call then returns ErrChannelExists. A failing stop aborts the update.
func (m *Manager) UpdateChannelConfig(ctx context.Context, cfg RuntimeChannelConfig) (*ChannelEntry, error) {
	if err := m.StopChannel(cfg.ID); err != nil {
		return nil, fmt.Errorf("factory: stop before update channel %d: %w", cfg.ID, err)
	}
	return m.CreateChannel(ctx, cfg)
}

// ErrChannelExists is returned when CreateChannel loses the race (or
// simply finds an existing entry) for a channel id.
type ErrChannelExists struct{ ChannelID uint16 }

func (e *ErrChannelExists) Error() string {
	return fmt.Sprintf("factory: channel %d already exists", e.ChannelID)
}
