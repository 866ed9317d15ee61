package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldwave/comsrv/internal/comerr"
	"github.com/fieldwave/comsrv/internal/modbus"
	"github.com/sirupsen/logrus"
)

// commandBatchWindow is the fixed window §4.2.5 recommends (~30ms) before
// a command batcher flush is due.
const commandBatchWindow = 30 * time.Millisecond

// ModbusEngine is the factory.Protocol implementation for both ModbusTCP
// and ModbusRTU, wiring together the connection manager, frame codec and
// poll loop built in internal/modbus.
type ModbusEngine struct {
	channelID uint16
	protocol  modbus.ProtocolType

	mu       sync.RWMutex
	conn     *modbus.Connection
	codec    *modbus.Codec
	points   []modbus.ModbusPoint
	pollCfg  modbus.PollConfig
	dataCh   chan<- modbus.TelemetryBatch
	cmdCh    <-chan Command
	batcher  *modbus.CommandBatcher
	logger   logrus.FieldLogger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

func newModbusEngine(channelID uint16, protocol modbus.ProtocolType) *ModbusEngine {
	return &ModbusEngine{
		channelID: channelID,
		protocol:  protocol,
		batcher:   modbus.NewCommandBatcher(commandBatchWindow),
		logger:    logrus.StandardLogger(),
	}
}

// SetLogger overrides the engine's default logger, used to report
// per-point command results (§4.2.5) with structured fields.
func (e *ModbusEngine) SetLogger(logger logrus.FieldLogger) {
	e.mu.Lock()
	e.logger = logger
	e.mu.Unlock()
}

func (e *ModbusEngine) log() logrus.FieldLogger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

func (e *ModbusEngine) Initialize(ctx context.Context, cfg RuntimeChannelConfig) error {
	dial, err := dialerFromParameters(e.protocol, cfg.Parameters)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.conn = modbus.NewConnection(dial)
	e.codec = modbus.NewCodec(e.protocol)
	e.points = cfg.Points
	e.pollCfg = pollConfigFromParameters(cfg.Parameters)
	e.mu.Unlock()
	return nil
}

func (e *ModbusEngine) Connect(ctx context.Context) error {
	e.mu.RLock()
	conn := e.conn
	cfg := e.pollCfg
	e.mu.RUnlock()
	if conn == nil {
		return &comerr.ChannelError{Msg: "engine not initialized"}
	}
	return conn.ConnectWithRetry(ctx, maxConsecutiveOr(3, cfg), cooldownOr(10*time.Second, cfg))
}

func maxConsecutiveOr(def int, cfg modbus.PollConfig) int {
	if cfg.RetryAttempts > 0 {
		return cfg.RetryAttempts
	}
	return def
}

func cooldownOr(def time.Duration, cfg modbus.PollConfig) time.Duration {
	if cfg.RetryDelay > 0 {
		return cfg.RetryDelay
	}
	return def
}

func (e *ModbusEngine) Disconnect() error {
	e.StopPeriodicTasks()
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (e *ModbusEngine) IsConnected() bool {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	return conn != nil && conn.IsConnected()
}

func (e *ModbusEngine) Status() Status {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	if conn == nil {
		return Status{ChannelID: e.channelID}
	}
	return Status{ChannelID: e.channelID, State: conn.State(), IsConnected: conn.IsConnected()}
}

func (e *ModbusEngine) Control(ctx context.Context, pointID string, value bool) error {
	pt, ok := e.findPoint(pointID)
	if !ok {
		return &comerr.InvalidParameter{Msg: "unknown point " + pointID}
	}
	e.mu.RLock()
	conn, codec := e.conn, e.codec
	e.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return &comerr.NotConnected{ChannelID: e.channelID}
	}

	pdu := modbus.BuildWriteSingleCoil(pt.RegisterAddress, value)
	frame, txID := codec.BuildFrame(pt.SlaveID, pdu)
	resp, err := conn.Transact(frame, 16)
	if err != nil {
		return err
	}
	_, respPDU, matched, err := codec.ParseFrame(resp, txID)
	if err != nil {
		return err
	}
	if !matched {
		return &comerr.TimeoutError{Msg: "control write: transaction id mismatch"}
	}
	if isExc, _, code := modbus.IsException(respPDU); isExc {
		return &comerr.ProtocolError{Msg: fmt.Sprintf("control write exception code=%d", code)}
	}
	return nil
}

func (e *ModbusEngine) Adjustment(ctx context.Context, pointID string, value float64) error {
	pt, ok := e.findPoint(pointID)
	if !ok {
		return &comerr.InvalidParameter{Msg: "unknown point " + pointID}
	}
	e.mu.RLock()
	conn, codec := e.conn, e.codec
	e.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return &comerr.NotConnected{ChannelID: e.channelID}
	}

	raw := (value - pt.Offset) / divOrOne(pt.Scale)
	regs, err := modbus.EncodeRegisters(modbus.FloatValue(raw), pt.DataType, pt.ByteOrder)
	if err != nil {
		return err
	}

	var pdu []byte
	if len(regs) == 1 {
		pdu = modbus.BuildWriteSingleRegister(pt.RegisterAddress, regs[0])
	} else {
		pdu = modbus.BuildWriteMultipleRegisters(pt.RegisterAddress, regs)
	}
	frame, txID := codec.BuildFrame(pt.SlaveID, pdu)
	resp, err := conn.Transact(frame, 16)
	if err != nil {
		return err
	}
	_, respPDU, matched, err := codec.ParseFrame(resp, txID)
	if err != nil {
		return err
	}
	if !matched {
		return &comerr.TimeoutError{Msg: "adjustment write: transaction id mismatch"}
	}
	if isExc, _, code := modbus.IsException(respPDU); isExc {
		return &comerr.ProtocolError{Msg: fmt.Sprintf("adjustment write exception code=%d", code)}
	}
	return nil
}

func divOrOne(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return scale
}

func (e *ModbusEngine) findPoint(pointID string) (modbus.ModbusPoint, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.points {
		if p.PointID == pointID {
			return p, true
		}
	}
	return modbus.ModbusPoint{}, false
}

func (e *ModbusEngine) StartPeriodicTasks(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	conn, codec, points, cfg, dataCh := e.conn, e.codec, e.points, e.pollCfg, e.dataCh
	childCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.started = true
	e.mu.Unlock()

	loop := modbus.NewPollLoop(e.channelID, points, codec, conn, cfg, nil, func(b modbus.TelemetryBatch) {
		if dataCh != nil {
			select {
			case dataCh <- b:
			default:
			}
		}
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		loop.Run(childCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.drainCommands(childCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.flushCommands(childCtx)
	}()

	return nil
}

// drainCommands queues every incoming command with the batcher instead of
// writing it immediately; flushCommands is what actually issues Modbus
// transactions, on its own window-driven schedule (§4.2.5).
func (e *ModbusEngine) drainCommands(ctx context.Context) {
	e.mu.RLock()
	cmdCh := e.cmdCh
	batcher := e.batcher
	e.mu.RUnlock()
	if cmdCh == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmdCh:
			if !ok {
				return
			}
			bc, ok := e.toBatchCommand(cmd)
			if !ok {
				continue
			}
			batcher.AddCommand(bc)
		}
	}
}

// toBatchCommand resolves the point a factory.Command targets and shapes
// it into the wire-level modbus.BatchCommand the batcher groups by
// (slave_id, function_code). Control always writes FC05; adjustments use
// FC16 when the point's data_type spans more than one register, FC06
// otherwise.
func (e *ModbusEngine) toBatchCommand(cmd Command) (modbus.BatchCommand, bool) {
	pt, ok := e.findPoint(cmd.PointID)
	if !ok {
		return modbus.BatchCommand{}, false
	}
	bc := modbus.BatchCommand{
		PointID:         cmd.PointID,
		SlaveID:         pt.SlaveID,
		RegisterAddress: pt.RegisterAddress,
		DataType:        pt.DataType,
		ByteOrder:       pt.ByteOrder,
		RegisterCount:   modbus.RegisterCountFor(pt.DataType),
	}
	switch cmd.Kind {
	case CommandControl:
		bc.FunctionCode = 5
		bc.Value = modbus.BoolValue(cmd.Value != 0)
	case CommandAdjustment:
		raw := (cmd.Value - pt.Offset) / divOrOne(pt.Scale)
		bc.Value = modbus.FloatValue(raw)
		if bc.RegisterCount > 1 {
			bc.FunctionCode = 16
		} else {
			bc.FunctionCode = 6
		}
	default:
		return modbus.BatchCommand{}, false
	}
	return bc, true
}

// flushCommands polls the batcher at a sub-window tick so should_execute
// can fire close to the configured window, and forces a final drain on
// shutdown so no queued command is ever stranded.
func (e *ModbusEngine) flushCommands(ctx context.Context) {
	e.mu.RLock()
	batcher := e.batcher
	e.mu.RUnlock()
	if batcher == nil {
		return
	}
	ticker := time.NewTicker(commandBatchWindow / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if groups := batcher.TakeCommands(); groups != nil {
				e.executeGroups(context.Background(), groups)
			}
			return
		case <-ticker.C:
			if !batcher.ShouldExecute(false) {
				continue
			}
			if groups := batcher.TakeCommands(); groups != nil {
				e.executeGroups(ctx, groups)
			}
		}
	}
}

// executeGroups runs take_commands' per-group decision (§4.2.5): a FC16
// group whose commands cover strictly consecutive registers is merged
// into one write; everything else is issued command-by-command.
func (e *ModbusEngine) executeGroups(ctx context.Context, groups map[modbus.BatchKey][]modbus.BatchCommand) {
	for key, cmds := range groups {
		merge, ordered := modbus.PlanGroup(key, cmds)
		if merge {
			e.executeMergedWrite(ctx, key, ordered)
			continue
		}
		for _, c := range ordered {
			e.executeSingleCommand(ctx, c)
		}
	}
}

// executeMergedWrite encodes every command in ordered into one contiguous
// register block and issues a single FC16 covering all of them, reporting
// the same success/failure for every point in the group since they share
// one PDU and one response.
func (e *ModbusEngine) executeMergedWrite(ctx context.Context, key modbus.BatchKey, ordered []modbus.BatchCommand) {
	var regs []uint16
	for _, c := range ordered {
		encoded, err := modbus.EncodeRegisters(c.Value, c.DataType, c.ByteOrder)
		if err != nil {
			e.log().WithFields(logrus.Fields{"point_id": c.PointID, "success": false}).
				WithError(err).Warn("command batch: encode failed, falling back to individual writes")
			e.executeIndividually(ctx, ordered)
			return
		}
		regs = append(regs, encoded...)
	}

	pdu := modbus.BuildWriteMultipleRegisters(ordered[0].RegisterAddress, regs)
	err := e.transactAndReport(ctx, key.SlaveID, pdu, ordered)
	if err != nil {
		e.log().WithFields(logrus.Fields{"slave_id": key.SlaveID, "function_code": key.FunctionCode}).
			WithError(err).Warn("command batch: merged write failed")
	}
}

// executeIndividually is executeMergedWrite's fallback when one command in
// the group fails to encode: the bad command is reported as a failure and
// every sibling is still issued on its own, per §4.2.5's error-isolation
// rule ("sibling commands continue").
func (e *ModbusEngine) executeIndividually(ctx context.Context, cmds []modbus.BatchCommand) {
	for _, c := range cmds {
		e.executeSingleCommand(ctx, c)
	}
}

// executeSingleCommand selects the PDU builder by function code and
// issues one write for one command, reporting its own success/failure.
func (e *ModbusEngine) executeSingleCommand(ctx context.Context, c modbus.BatchCommand) {
	var pdu []byte
	switch c.FunctionCode {
	case 5:
		on, _ := c.Value.Bool()
		pdu = modbus.BuildWriteSingleCoil(c.RegisterAddress, on)
	case 6:
		regs, err := modbus.EncodeRegisters(c.Value, c.DataType, c.ByteOrder)
		if err != nil {
			e.reportResult(c.PointID, false, err)
			return
		}
		pdu = modbus.BuildWriteSingleRegister(c.RegisterAddress, regs[0])
	case 16:
		regs, err := modbus.EncodeRegisters(c.Value, c.DataType, c.ByteOrder)
		if err != nil {
			e.reportResult(c.PointID, false, err)
			return
		}
		pdu = modbus.BuildWriteMultipleRegisters(c.RegisterAddress, regs)
	default:
		e.reportResult(c.PointID, false, fmt.Errorf("command batch: unsupported function code %d", c.FunctionCode))
		return
	}

	err := e.transactAndReport(ctx, c.SlaveID, pdu, []modbus.BatchCommand{c})
	if err != nil {
		e.log().WithFields(logrus.Fields{"point_id": c.PointID}).WithError(err).Warn("command batch: write failed")
	}
}

// transactAndReport sends pdu over the engine's connection and reports
// per-point success/failure (§4.2.5: success = !is_exception(response)) for
// every command the PDU covers.
func (e *ModbusEngine) transactAndReport(ctx context.Context, slaveID uint8, pdu []byte, cmds []modbus.BatchCommand) error {
	e.mu.RLock()
	conn, codec := e.conn, e.codec
	e.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		err := &comerr.NotConnected{ChannelID: e.channelID}
		for _, c := range cmds {
			e.reportResult(c.PointID, false, err)
		}
		return err
	}

	frame, txID := codec.BuildFrame(slaveID, pdu)
	resp, err := conn.Transact(frame, 16)
	if err != nil {
		for _, c := range cmds {
			e.reportResult(c.PointID, false, err)
		}
		return err
	}
	_, respPDU, matched, err := codec.ParseFrame(resp, txID)
	if err != nil {
		for _, c := range cmds {
			e.reportResult(c.PointID, false, err)
		}
		return err
	}
	if !matched {
		err := &comerr.TimeoutError{Msg: "command batch: transaction id mismatch"}
		for _, c := range cmds {
			e.reportResult(c.PointID, false, err)
		}
		return err
	}

	isExc, _, code := modbus.IsException(respPDU)
	success := !isExc
	for _, c := range cmds {
		e.reportResult(c.PointID, success, nil)
	}
	if isExc {
		return &comerr.ProtocolError{Msg: fmt.Sprintf("command batch: write exception code=%d", code)}
	}
	return nil
}

func (e *ModbusEngine) reportResult(pointID string, success bool, err error) {
	entry := e.log().WithFields(logrus.Fields{"point_id": pointID, "success": success})
	if err != nil {
		entry.WithError(err).Warn("command result")
		return
	}
	entry.Debug("command result")
}

func (e *ModbusEngine) StopPeriodicTasks() error {
	e.mu.Lock()
	cancel := e.cancel
	e.started = false
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	return nil
}

func (e *ModbusEngine) SetDataChannel(ch chan<- modbus.TelemetryBatch) {
	e.mu.Lock()
	e.dataCh = ch
	e.mu.Unlock()
}

func (e *ModbusEngine) SetCommandReceiver(ch <-chan Command) {
	e.mu.Lock()
	e.cmdCh = ch
	e.mu.Unlock()
}

// modbusBuilder registers both transport variants under one Builder,
// selected at construction time.
type modbusBuilder struct{ protocol modbus.ProtocolType }

func (b modbusBuilder) ProtocolType() modbus.ProtocolType { return b.protocol }
func (b modbusBuilder) Build(channelID uint16) Protocol {
	return newModbusEngine(channelID, b.protocol)
}

func init() {
	RegisterBuilder(modbusBuilder{protocol: modbus.ModbusTCP})
	RegisterBuilder(modbusBuilder{protocol: modbus.ModbusRTU})
}
