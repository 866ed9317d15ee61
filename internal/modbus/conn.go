package modbus

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldwave/comsrv/internal/comerr"
	"github.com/goburrow/serial"
)

// Transport is the wire-level read/write surface a Connection drives,
// satisfied by either a TCP socket or a serial port.
type Transport interface {
	io.ReadWriteCloser
}

// TransportDialer opens a Transport on demand; ConnectWithRetry calls it
// once per attempt rather than holding a transport open across failures.
type TransportDialer func(ctx context.Context) (Transport, error)

// TCPDialer builds a TransportDialer for Modbus TCP.
func TCPDialer(addr string, timeout time.Duration) TransportDialer {
	return func(ctx context.Context) (Transport, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &comerr.ConnectionError{Msg: "tcp dial " + addr, Err: err}
		}
		return conn, nil
	}
}

// SerialConfig mirrors the RTU link parameters a channel config carries.
type SerialConfig struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
	Timeout  time.Duration
}

// SerialDialer builds a TransportDialer for Modbus RTU over a serial port.
func SerialDialer(cfg SerialConfig) TransportDialer {
	return func(ctx context.Context) (Transport, error) {
		port, err := serial.Open(&serial.Config{
			Address:  cfg.Device,
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			Parity:   cfg.Parity,
			StopBits: cfg.StopBits,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, &comerr.ConnectionError{Msg: "serial open " + cfg.Device, Err: err}
		}
		return port, nil
	}
}

// Connection owns one transport, the connection state machine
// (Uninitialized -> Initializing -> Connecting -> {Connected | Failed} ->
// Closed), and the burst+cooldown retry policy.
type Connection struct {
	dial TransportDialer

	mu        sync.Mutex
	transport Transport
	state     atomic.Int32 // ConnectionState

	consecutiveFailures int
}

func NewConnection(dial TransportDialer) *Connection {
	c := &Connection{dial: dial}
	c.state.Store(int32(Uninitialized))
	return c
}

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Connection) IsConnected() bool {
	return c.State() == Connected
}

// ConnectWithRetry attempts to establish the transport, retrying
// immediately up to maxConsecutive times; once that burst is exhausted it
// sleeps cooldown before returning, reporting Failed so the polling loop
// can decide whether to call again. A ctx cancellation aborts the wait
// immediately.
func (c *Connection) ConnectWithRetry(ctx context.Context, maxConsecutive int, cooldown time.Duration) error {
	c.state.Store(int32(Connecting))

	for attempt := 0; attempt < maxConsecutive; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := c.dial(ctx)
		if err == nil {
			c.mu.Lock()
			c.transport = t
			c.consecutiveFailures = 0
			c.mu.Unlock()
			c.state.Store(int32(Connected))
			return nil
		}
		c.consecutiveFailures++
	}

	c.state.Store(int32(Failed))
	timer := time.NewTimer(cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &comerr.ConnectionError{Msg: "exhausted retry burst, cooldown elapsed"}
	}
}

// Transact writes a frame and reads back a response buffer of size up to
// maxLen, returning as many bytes as were read before EOF/timeout so the
// caller can still parse a short, complete frame (graceful truncation
// happens one layer up, in the PDU parser).
func (c *Connection) Transact(frame []byte, maxLen int) ([]byte, error) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil, &comerr.NotConnected{}
	}

	if _, err := t.Write(frame); err != nil {
		c.markDisconnected()
		return nil, &comerr.ConnectionError{Msg: "write", Err: err}
	}

	buf := make([]byte, maxLen)
	n, err := t.Read(buf)
	if err != nil && n == 0 {
		c.markDisconnected()
		return nil, &comerr.ConnectionError{Msg: "read", Err: err}
	}
	return buf[:n], nil
}

func (c *Connection) markDisconnected() {
	c.mu.Lock()
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
	c.mu.Unlock()
	c.state.Store(int32(Failed))
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		err := c.transport.Close()
		c.transport = nil
		c.state.Store(int32(Closed))
		return err
	}
	c.state.Store(int32(Closed))
	return nil
}
