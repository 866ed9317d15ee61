package modbus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ModbusPoint is one addressable register/coil mapping, populated at
// initialize and immutable until update_channel_config replaces the
// whole set.
type ModbusPoint struct {
	PointID         string
	SlaveID         uint8
	FunctionCode    uint8
	RegisterAddress uint16
	DataType        DataType
	RegisterCount   uint16
	ByteOrder       ByteOrder
	BitPosition     uint8
	Scale           float64
	Offset          float64
	Reverse         bool
	Role            PointRole
}

// PointSample is one decoded reading inside a TelemetryBatch.
type PointSample struct {
	PointID   string
	Value     float64
	Timestamp time.Time
}

// TelemetryBatch carries every point read during one poll cycle. Values
// are the raw decoded register/coil contents; scale/offset transform is
// left to the downstream sync layer (see internal/transform).
type TelemetryBatch struct {
	ChannelID uint16
	Telemetry []PointSample
	Signal    []PointSample
}

// PollConfig holds the per-channel tunables §6 names under `polling.*`.
type PollConfig struct {
	Interval        time.Duration
	MaxBatchSize    uint16
	MaxGap          uint16 // informational; GroupAndBatch hardcodes the spec's gap=5
	MaxZeroCycles   int
	RetryAttempts   int
	RetryDelay      time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:      time.Second,
		MaxBatchSize:  MaxRegistersInReadResponse,
		MaxGap:        5,
		MaxZeroCycles: 5,
		RetryAttempts: 3,
		RetryDelay:    100 * time.Millisecond,
	}
}

// PollLoop drives the periodic read cycle for one channel: it coalesces
// ModbusPoint reads into batches, issues one or more PDUs per batch,
// decodes responses, and emits one TelemetryBatch per tick.
type PollLoop struct {
	channelID uint16
	points    []ModbusPoint
	codec     *Codec
	conn      *Connection
	cfg       PollConfig
	logger    logrus.FieldLogger
	emit      func(TelemetryBatch)

	zeroCycleCount int
}

func NewPollLoop(channelID uint16, points []ModbusPoint, codec *Codec, conn *Connection, cfg PollConfig, logger logrus.FieldLogger, emit func(TelemetryBatch)) *PollLoop {
	return &PollLoop{
		channelID: channelID,
		points:    points,
		codec:     codec,
		conn:      conn,
		cfg:       cfg,
		logger:    logger,
		emit:      emit,
	}
}

// Run ticks every cfg.Interval until ctx is cancelled, using a
// skip-missed-ticks policy (time.Ticker drops ticks it can't deliver
// rather than bursting to catch up).
func (p *PollLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *PollLoop) tick(ctx context.Context) {
	if p.conn.State() == Failed {
		if err := p.conn.ConnectWithRetry(ctx, p.cfg.RetryAttempts, p.cfg.RetryDelay); err != nil {
			return
		}
	}

	specs := make([]ReadSpec, 0, len(p.points))
	byAddr := make(map[readKey]ModbusPoint, len(p.points))
	for _, pt := range p.points {
		specs = append(specs, ReadSpec{
			PointID:  pt.PointID,
			SlaveID:  pt.SlaveID,
			Func:     pt.FunctionCode,
			Role:     pt.Role,
			Address:  pt.RegisterAddress,
			Quantity: pt.RegisterCount,
		})
		byAddr[readKey{pt.SlaveID, pt.FunctionCode, pt.RegisterAddress}] = pt
	}

	batches := GroupAndBatch(specs, p.cfg.MaxBatchSize)
	now := time.Now()
	result := TelemetryBatch{ChannelID: p.channelID}
	successCount, errorCount := 0, 0

	for _, batch := range batches {
		for _, chunk := range batch.Chunk(maxQuantityFor(batch.Func)) {
			values, err := p.readChunk(ctx, chunk)
			if err != nil {
				errorCount++
				if p.logger != nil {
					p.logger.Warnf("poll cycle: batch read failed slave=%d fc=%d addr=%d: %v", chunk.SlaveID, chunk.Func, chunk.Address, err)
				}
				continue
			}
			successCount++
			p.decodeChunk(chunk, values, byAddr, now, &result)
		}
	}

	p.updateZeroCycle(successCount, errorCount)
	if p.emit != nil {
		p.emit(result)
	}
}

type readKey struct {
	slave uint8
	fc    uint8
	addr  uint16
}

func maxQuantityFor(fc uint8) uint16 {
	switch fc {
	case FuncReadCoils, FuncReadDiscreteInputs:
		return MaxCoilsInReadResponse
	default:
		return MaxRegistersInReadResponse
	}
}

// readChunk issues one PDU for a batch/chunk, making up to
// cfg.RetryAttempts attempts in all on a unit-id mismatch before giving up on this
// PDU alone (batch isolation: the cycle continues with the next batch).
func (p *PollLoop) readChunk(ctx context.Context, chunk Batch) (any, error) {
	req, err := BuildReadRequest(chunk.Func, chunk.Address, chunk.Quantity)
	if err != nil {
		return nil, err
	}

	attempts := p.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		frame, txID := p.codec.BuildFrame(chunk.SlaveID, req)
		resp, err := p.conn.Transact(frame, 260)
		if err != nil {
			lastErr = err
			break
		}
		unitID, pdu, matched, err := p.codec.ParseFrame(resp, txID)
		if err != nil {
			lastErr = err
			break
		}
		if unitID != chunk.SlaveID || !matched {
			lastErr = &mismatchError{}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.RetryDelay):
			}
			continue
		}
		if isExc, _, code := IsException(pdu); isExc {
			return nil, &exceptionErr{code: code}
		}
		switch chunk.Func {
		case FuncReadCoils, FuncReadDiscreteInputs:
			return ParseReadCoilsResponse(pdu)
		default:
			return ParseReadRegistersResponse(pdu)
		}
	}
	return nil, lastErr
}

func (p *PollLoop) decodeChunk(chunk Batch, raw any, byAddr map[readKey]ModbusPoint, ts time.Time, result *TelemetryBatch) {
	switch chunk.Func {
	case FuncReadCoils, FuncReadDiscreteInputs:
		bits, _ := raw.([]byte)
		for offset := uint16(0); offset < chunk.Quantity; offset++ {
			pt, ok := byAddr[readKey{chunk.SlaveID, chunk.Func, chunk.Address + offset}]
			if !ok {
				continue
			}
			v, err := DecodeCoilBit(bits, int(offset))
			if err != nil {
				continue
			}
			appendSample(result, pt, valueToFloat(v, pt.Reverse), ts)
		}
	default:
		regs, _ := raw.([]uint16)
		for _, pt := range pointsInRange(byAddr, chunk) {
			offset := pt.RegisterAddress - chunk.Address
			if int(offset)+int(pt.RegisterCount) > len(regs) {
				continue // graceful truncation left this point's registers incomplete
			}
			var v Value
			var err error
			if pt.DataType == TypeBit {
				v = DecodeBit(regs[offset], pt.BitPosition, false)
			} else {
				v, err = DecodeRegisters(regs[offset:offset+pt.RegisterCount], pt.DataType, pt.ByteOrder)
			}
			if err != nil {
				continue
			}
			appendSample(result, pt, valueToFloat(v, pt.Reverse), ts)
		}
	}
}

func pointsInRange(byAddr map[readKey]ModbusPoint, chunk Batch) []ModbusPoint {
	var pts []ModbusPoint
	for offset := uint16(0); offset < chunk.Quantity; offset++ {
		if pt, ok := byAddr[readKey{chunk.SlaveID, chunk.Func, chunk.Address + offset}]; ok {
			pts = append(pts, pt)
		}
	}
	return pts
}

func valueToFloat(v Value, reverseBool bool) float64 {
	if v.Kind() == KindBool {
		b, _ := v.Bool()
		if reverseBool {
			b = !b
		}
		if b {
			return 1
		}
		return 0
	}
	f, _ := v.Float()
	return f
}

func appendSample(result *TelemetryBatch, pt ModbusPoint, value float64, ts time.Time) {
	sample := PointSample{PointID: pt.PointID, Value: value, Timestamp: ts}
	if pt.Role == RoleSignal {
		result.Signal = append(result.Signal, sample)
	} else {
		result.Telemetry = append(result.Telemetry, sample)
	}
}

// updateZeroCycle implements the zero-cycle heuristic: MAX_ZERO_CYCLES
// consecutive ticks with zero successes and at least one error force the
// connection into Failed so the next tick reconnects (tick calls
// ConnectWithRetry whenever the connection is Failed). Any success resets
// the counter.
func (p *PollLoop) updateZeroCycle(successCount, errorCount int) {
	if successCount > 0 {
		p.zeroCycleCount = 0
		return
	}
	if errorCount > 0 {
		p.zeroCycleCount++
		if p.zeroCycleCount >= p.cfg.MaxZeroCycles {
			p.conn.markDisconnected()
			p.zeroCycleCount = 0
		}
	}
}

type mismatchError struct{}

func (e *mismatchError) Error() string { return "response unit id mismatch" }

type exceptionErr struct{ code uint8 }

func (e *exceptionErr) Error() string { return "modbus exception response" }
