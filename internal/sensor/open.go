package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"

	"cloudpico-bridge/internal/config"
)

// Open builds the sensor selected by cfg.SensorKind. It returns (nil, nil)
// for config.SensorNone. The BLE beacon does not touch the bus; its caller
// is expected to feed it from a ble.Listener.
func Open(cfg config.Config, bus i2c.Bus) (Sensor, error) {
	switch cfg.SensorKind {
	case config.SensorNone:
		return nil, nil
	case config.SensorBLE:
		return NewBeacon(cfg.BLEMaxAge), nil
	}
	if bus == nil {
		return nil, fmt.Errorf("sensor %s: no I2C bus", cfg.SensorKind)
	}
	switch cfg.SensorKind {
	case config.SensorGrovePiDHT:
		return NewGrovePiDHT(bus, cfg.GrovePiAddress, cfg.DHTPin, cfg.DHTModel)
	case config.SensorBME280:
		return NewBME280(bus, cfg.BME280Address)
	default:
		return nil, fmt.Errorf("unknown sensor kind %q", cfg.SensorKind)
	}
}
