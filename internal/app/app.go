package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c"

	"cloudpico-bridge/internal/bridge"
	"cloudpico-bridge/internal/config"
	"cloudpico-bridge/internal/db"
	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/display"
	"cloudpico-bridge/internal/httpapi"
	"cloudpico-bridge/internal/journal"
	"cloudpico-bridge/internal/logging"
	"cloudpico-bridge/internal/metrics"
	"cloudpico-bridge/internal/mqtt"
	"cloudpico-bridge/internal/telemetry"
)

const greeting = "Bridge ready."

// Run wires the bridge and blocks until ctx is cancelled or a component
// fails to start.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("initializing bridge",
		"device_id", cfg.DeviceID,
		"sensor", cfg.SensorKind,
		"display", cfg.DisplayKind,
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
	)

	m := metrics.New()
	state := device.NewState(cfg.InitialIndicator)

	var bus i2c.BusCloser
	if needsI2C(cfg) {
		b, err := openI2C(cfg)
		if err != nil {
			logger.Warn("i2c unavailable; continuing without i2c hardware", "error", err)
		} else {
			bus = b
			defer func() { _ = bus.Close() }()
		}
	}
	var i2cBus i2c.Bus
	if bus != nil {
		i2cBus = bus
	}

	// Stops the background goroutines when startup fails below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	live := openSensor(ctx, cfg, i2cBus, logging.Component(logger, "sensor"))
	if live != nil {
		defer func() { _ = live.Close() }()
	}

	screen := display.NewSerialized(openDisplay(cfg, i2cBus, logger))
	g.Go(func() error { return screen.Run(ctx) })
	if err := screen.SetColor(display.IndicatorFor(state.Color())); err != nil {
		logger.Warn("initial display color failed", "error", err)
	}
	if err := screen.SetText(greeting); err != nil {
		logger.Warn("initial display text failed", "error", err)
	}

	var (
		uplinkJournal  bridge.UplinkRecorder
		commandJournal bridge.CommandRecorder
		journalReader  httpapi.JournalReader
	)
	if cfg.JournalEnabled() {
		sqlDB, err := db.Open(ctx, cfg, logging.Component(logger, "db"))
		if err != nil {
			return fmt.Errorf("open journal database: %w", err)
		}
		defer func() { _ = db.Close(sqlDB) }()
		j, err := journal.Open(ctx, sqlDB, cfg.JournalRetention, logging.Component(logger, "journal"))
		if err != nil {
			return err
		}
		uplinkJournal, commandJournal, journalReader = j, j, j
	}

	client, err := mqtt.NewClient(cfg, logging.Component(logger, "mqtt"))
	if err != nil {
		return err
	}
	defer client.Disconnect()
	go keepConnecting(ctx, client, logger)

	var samplerOpts []telemetry.SamplerOption
	samplerOpts = append(samplerOpts, telemetry.WithFaultCounter(m.SensorFaults))
	if live != nil {
		samplerOpts = append(samplerOpts, telemetry.WithSensor(live))
	}
	sampler := telemetry.NewSampler(cfg.DeviceID, telemetry.Baselines{
		Temperature: cfg.BaselineTemperature,
		Humidity:    cfg.BaselineHumidity,
		WindSpeed:   cfg.BaselineWindSpeed,
		Spread:      cfg.SyntheticSpread,
	}, logging.Component(logger, "sampler"), samplerOpts...)

	board := bridge.NewStatusBoard()
	indicator := bridge.NewIndicatorControl(state, screen, m, logging.Component(logger, "indicator"))

	uplink := bridge.NewUplink(bridge.UplinkDeps{
		Sampler:  sampler,
		State:    state,
		Display:  screen,
		Board:    board,
		Sender:   client,
		Journal:  uplinkJournal,
		Metrics:  m,
		Logger:   logging.Component(logger, "uplink"),
		Interval: cfg.UplinkInterval,
	})
	downlink := bridge.NewDownlink(bridge.DownlinkDeps{
		Receiver:  client,
		Indicator: indicator,
		Board:     board,
		Journal:   commandJournal,
		Metrics:   m,
		Logger:    logging.Component(logger, "downlink"),
		Backoff:   cfg.DownlinkBackoff,
	})
	g.Go(func() error { return uplink.Run(ctx) })
	g.Go(func() error { return downlink.Run(ctx) })

	if cfg.HTTPEnabled() {
		httpLogger := logging.Component(logger, "http")
		mux := httpapi.NewMux(httpapi.Deps{
			DeviceID:   cfg.DeviceID,
			LiveSensor: sampler.HasLiveSensor(),
			Status:     board,
			Indicator:  indicator,
			Link:       client,
			Journal:    journalReader,
			Metrics:    m.Handler(),
			Logger:     httpLogger,
		})
		srv := httpapi.NewServer(cfg, mux, httpLogger)
		g.Go(func() error { return httpapi.Serve(ctx, srv, httpLogger) })
	}

	err = g.Wait()
	logger.Info("bridge shutting down")
	return err
}

// keepConnecting retries the initial broker connection until it succeeds.
// Once connected, paho's auto-reconnect takes over.
func keepConnecting(ctx context.Context, client *mqtt.Client, logger *slog.Logger) {
	for {
		err := client.Connect(ctx)
		if err == nil || ctx.Err() != nil || errors.Is(err, mqtt.ErrStopped) {
			return
		}
		logger.Error("mqtt connect failed; retrying", "error", err)
	}
}
