package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fieldwave/comsrv/internal/api"
	"github.com/fieldwave/comsrv/internal/bus"
	"github.com/fieldwave/comsrv/internal/calc"
	"github.com/fieldwave/comsrv/internal/calcstore"
	"github.com/fieldwave/comsrv/internal/comlog"
	"github.com/fieldwave/comsrv/internal/config"
	"github.com/fieldwave/comsrv/internal/db"
	"github.com/fieldwave/comsrv/internal/factory"
	"github.com/fieldwave/comsrv/internal/hostenv"
	"github.com/fieldwave/comsrv/internal/modbus"
	"github.com/fieldwave/comsrv/internal/models"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the communication-service core",
	Run: func(cmd *cobra.Command, args []string) {
		cobra.CheckErr(runServer(cfgFile))
	},
}

func runServer(cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := comlog.NewProcessLogger(cfg.LogPath, cfg.Debug)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logger.Close()

	if err := comlog.CreatePidFile(cfg.PID); err != nil {
		return fmt.Errorf("already running? %w", err)
	}
	defer comlog.RemovePidFile(cfg.PID)

	gdb, err := db.Open(cfg, logger.Run)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := models.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}
	if err := db.SeedDefaultSettings(gdb); err != nil {
		return fmt.Errorf("seed default settings: %w", err)
	}

	reg := calc.NewRegistry()
	loaded, err := calcstore.LoadFromSQLite(gdb, reg, logrus.NewEntry(logger.Run))
	if err != nil {
		return fmt.Errorf("load calculations: %w", err)
	}
	logger.Run.Infof("loaded %d calculation definitions", loaded)

	kv := openBus()
	defer kv.Close()

	engine := calc.NewEngine(reg, kv, nil)
	scheduler, err := calc.NewScheduler(engine, time.Second, logrus.NewEntry(logger.Run))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	if err := scheduler.Start(rootCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	var fanout *bus.MQTTFanout
	var mqttServer *mqtt.Server
	if cfg.MQTT.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)
		mqttServer, err = bus.NewEmbeddedBroker(addr)
		if err != nil {
			return fmt.Errorf("start mqtt broker: %w", err)
		}
		defer mqttServer.Close()
		fanout = bus.NewMQTTFanout(mqttServer)
		logger.Run.Infof("mqtt broker listening on %s", addr)
	}

	mgr := factory.NewManager(rootCtx)
	defer mgr.StopAll()

	env := &hostenv.Env{Logger: logger.Run, Bus: kv, DB: gdb, WG: &sync.WaitGroup{}}

	if err := startChannels(rootCtx, env, mgr, fanout); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	server := &api.Server{DB: gdb, Cfg: cfg, Manager: mgr, Calc: engine}
	app := api.NewFiberApp(logger.Run, logger.Run)
	server.Route(app)
	go func() {
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			logger.Run.WithError(err).Error("http listener stopped")
		}
	}()
	logger.Run.Infof("http api listening on %s", cfg.HTTP.Addr)

	waitForSignal(logger)
	rootCancel()
	env.WG.Wait()
	return nil
}

// openBus selects the KvBus implementation: Redis when either documented
// env var is set, in-memory otherwise.
func openBus() bus.KvBus {
	if os.Getenv("REDIS_URL") != "" || os.Getenv("COMSRV_SERVICE_REDIS_URL") != "" {
		rb, err := bus.NewRedisBus(bus.ResolveRedisURL())
		if err == nil {
			return rb
		}
		log.Printf("redis bus unavailable, falling back to memory: %v", err)
	}
	return bus.NewMemoryBus()
}

// startChannels loads every non-disabled Channel row, resolves its
// points, and hands both to the channel factory, wiring each channel's
// decoded telemetry onto the KvBus (and, if enabled, the MQTT fanout)
// and its command stream from the bus's CommandSubscriber, when the
// configured bus implements one.
func startChannels(ctx context.Context, env *hostenv.Env, mgr *factory.Manager, fanout *bus.MQTTFanout) error {
	log := env.Logger
	var rows []models.Channel
	if err := env.DB.Where("disabled = ?", false).Order("name asc").Find(&rows).Error; err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	sub, hasCommands := env.Bus.(bus.CommandSubscriber)

	for _, ch := range rows {
		var params map[string]any
		if len(ch.Parameters) > 0 {
			if err := json.Unmarshal(ch.Parameters, &params); err != nil {
				log.WithError(err).Warnf("channel %s: bad parameters json, skipping", ch.UUID)
				continue
			}
		}

		var pointRows []models.PointConfig
		if err := env.DB.Where("channel_id = ?", ch.ID).Find(&pointRows).Error; err != nil {
			return fmt.Errorf("list points for channel %d: %w", ch.ID, err)
		}

		points := make([]modbus.ModbusPoint, 0, len(pointRows))
		for _, p := range pointRows {
			point, err := factory.PointFromRow(factory.PointRow{
				PointID:         p.PointID,
				SlaveID:         p.SlaveID,
				FunctionCode:    p.FunctionCode,
				RegisterAddress: p.RegisterAddress,
				DataType:        p.DataType,
				RegisterCount:   p.RegisterCount,
				ByteOrder:       p.ByteOrder,
				BitPosition:     p.BitPosition,
				Scale:           p.Scale,
				Offset:          p.Offset,
				Reverse:         p.Reverse,
				Role:            p.Role,
			})
			if err != nil {
				log.WithError(err).Warnf("channel %s: dropping point %s", ch.UUID, p.PointID)
				continue
			}
			points = append(points, point)
		}

		rcfg := factory.RuntimeChannelConfig{
			ChannelConfig: factory.ChannelConfig{
				ID:          uint16(ch.ID),
				Name:        ch.Name,
				Description: ch.Description,
				Protocol:    ch.Protocol,
				Parameters:  params,
			},
			Points: points,
		}

		entry, err := mgr.CreateChannel(ctx, rcfg)
		if err != nil {
			log.WithError(err).Errorf("channel %s: create failed", ch.UUID)
			continue
		}

		dataCh := make(chan modbus.TelemetryBatch, 16)
		entry.Protocol.SetDataChannel(dataCh)
		env.WG.Add(1)
		go consumeTelemetry(ctx, env, dataCh, fanout)

		if hasCommands {
			if _, err := factory.WireCommands(ctx, sub, uint16(ch.ID), entry.Protocol, log); err != nil {
				log.WithError(err).Warnf("channel %s: command wiring failed", ch.UUID)
			}
		}

		if err := entry.Protocol.Connect(ctx); err != nil {
			log.WithError(err).Warnf("channel %s: initial connect failed, retrying via periodic tasks", ch.UUID)
		}
		if err := entry.Protocol.StartPeriodicTasks(ctx); err != nil {
			log.WithError(err).Errorf("channel %s: start polling failed", ch.UUID)
		}
	}
	return nil
}

// consumeTelemetry is the "whatever sink exists" the factory/embedder
// wires the protocol's TelemetryBatch channel to: every sample is
// written to the KvBus keyed by its own point_id (matching the spec's
// own worked bus-key examples), and the whole batch is additionally
// published to the MQTT fanout sink when one is configured.
func consumeTelemetry(ctx context.Context, env *hostenv.Env, dataCh <-chan modbus.TelemetryBatch, fanout *bus.MQTTFanout) {
	defer env.WG.Done()
	log := env.Logger
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-dataCh:
			if !ok {
				return
			}
			for _, s := range batch.Telemetry {
				if err := env.Bus.Set(ctx, s.PointID, formatSample(s.Value)); err != nil {
					log.WithError(err).Warnf("bus set failed for point %s", s.PointID)
				}
			}
			for _, s := range batch.Signal {
				if err := env.Bus.Set(ctx, s.PointID, formatSample(s.Value)); err != nil {
					log.WithError(err).Warnf("bus set failed for point %s", s.PointID)
				}
			}
			if fanout != nil {
				if err := fanout.Publish(toBusBatch(batch)); err != nil {
					log.WithError(err).Warn("mqtt fanout publish failed")
				}
			}
		}
	}
}

func formatSample(v float64) string {
	return fmt.Sprintf("%g", v)
}

func toBusBatch(b modbus.TelemetryBatch) bus.TelemetryBatch {
	out := bus.TelemetryBatch{ChannelID: b.ChannelID}
	for _, s := range b.Telemetry {
		out.Telemetry = append(out.Telemetry, bus.TelemetrySample{PointID: s.PointID, Value: s.Value, Timestamp: s.Timestamp.UnixMilli()})
	}
	for _, s := range b.Signal {
		out.Signal = append(out.Signal, bus.TelemetrySample{PointID: s.PointID, Value: s.Value, Timestamp: s.Timestamp.UnixMilli()})
	}
	return out
}

// waitForSignal blocks until SIGTERM/SIGINT, reopening the process log
// on SIGUSR1 in the meantime (the teacher's own log-rotation contract).
func waitForSignal(logger *comlog.ProcessLogger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGTERM, syscall.SIGINT)
	for sig := range ch {
		switch sig {
		case syscall.SIGUSR1:
			if err := logger.Reopen(); err != nil {
				log.Printf("reopen log failed: %v", err)
			}
		case syscall.SIGTERM, syscall.SIGINT:
			return
		}
	}
}
