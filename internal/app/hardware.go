package app

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"cloudpico-bridge/internal/ble"
	"cloudpico-bridge/internal/config"
	"cloudpico-bridge/internal/display"
	"cloudpico-bridge/internal/logging"
	"cloudpico-bridge/internal/sensor"
)

// beaconFilter matches the Pico sensor advertisements.
var beaconFilter = ble.Filter{
	CompanyID:            0xFFFF,
	ManufacturerDataPref: []byte{0x01, 0xD0},
}

func needsI2C(cfg config.Config) bool {
	switch cfg.SensorKind {
	case config.SensorGrovePiDHT, config.SensorBME280:
		return true
	}
	return cfg.DisplayKind == config.DisplayGroveLCD
}

// openI2C initializes the host drivers and opens cfg.I2CBus ("" selects the
// first bus, usually /dev/i2c-1).
func openI2C(cfg config.Config) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	return bus, nil
}

// openSensor returns the configured live sensor, or nil when none is
// configured or the hardware cannot be reached.
func openSensor(ctx context.Context, cfg config.Config, bus i2c.Bus, logger *slog.Logger) sensor.Sensor {
	if cfg.SensorKind == config.SensorNone {
		logger.Info("no live sensor configured; using synthetic data")
		return nil
	}
	s, err := sensor.Open(cfg, bus)
	if err != nil {
		logger.Warn("sensor not found; using synthetic data", "kind", cfg.SensorKind, "error", err)
		return nil
	}
	if beacon, ok := s.(*sensor.Beacon); ok {
		bleLogger := logging.Component(logger, "ble")
		listener := ble.NewListener(ble.Options{
			Adapter: cfg.BLEAdapter,
			Filter:  beaconFilter,
			Logger:  bleLogger,
		})
		ble.NewSensorHandler(beacon, cfg.BLEDeviceID, bleLogger).StartListener(ctx, listener)
	}
	logger.Info("live sensor ready", "kind", cfg.SensorKind)
	return s
}

// openDisplay returns the Grove LCD when configured and present, otherwise
// the console display.
func openDisplay(cfg config.Config, bus i2c.Bus, logger *slog.Logger) display.Display {
	if cfg.DisplayKind == config.DisplayGroveLCD {
		if bus != nil {
			lcd, err := display.NewGroveLCD(bus, cfg.LCDTextAddress, cfg.LCDRGBAddress)
			if err == nil {
				logger.Info("grove lcd ready")
				return lcd
			}
			logger.Warn("grove lcd not found; using console display", "error", err)
		} else {
			logger.Warn("no i2c bus for grove lcd; using console display")
		}
	}
	return display.NewConsole(logging.Component(logger, "display"))
}
