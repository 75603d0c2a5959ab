// Package sensor provides the live temperature/humidity sources the sampler
// can read: a DHT probe behind a GrovePi board, a BME280 on the I2C bus, or
// the latest advertisement of a BLE beacon.
package sensor

import (
	"errors"
	"fmt"
	"math"
)

// Measurement is one live reading. Temperature is in degrees Fahrenheit,
// humidity in percent relative humidity.
type Measurement struct {
	Temperature float64
	Humidity    float64
}

// Sensor is a live measurement source.
type Sensor interface {
	Measure() (Measurement, error)
	Close() error
}

var (
	ErrNoReading    = errors.New("sensor: no reading yet")
	ErrStaleReading = errors.New("sensor: reading is stale")
	ErrBadReading   = errors.New("sensor: implausible reading")
)

// checkReading rejects values no supported sensor can produce. NaN and
// infinities fall outside the range too.
func checkReading(tempC, humidity float64) error {
	if math.IsNaN(tempC) || math.IsNaN(humidity) ||
		tempC < -40 || tempC > 85 || humidity < 0 || humidity > 100 {
		return fmt.Errorf("%w: temperature=%v humidity=%v", ErrBadReading, tempC, humidity)
	}
	return nil
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
