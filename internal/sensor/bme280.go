package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// BME280 reads temperature and humidity from a Bosch BME280 on the I2C bus.
type BME280 struct {
	dev *bmxx80.Dev
}

func NewBME280(bus i2c.Bus, addr uint16) (*BME280, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bme280: open 0x%02x: %w", addr, err)
	}
	return &BME280{dev: dev}, nil
}

func (b *BME280) Measure() (Measurement, error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return Measurement{}, fmt.Errorf("bme280: sense: %w", err)
	}
	return fromEnv(env), nil
}

func (b *BME280) Close() error {
	return b.dev.Halt()
}

func fromEnv(env physic.Env) Measurement {
	// env.Humidity is fixed point at 0.00001 %rH.
	return Measurement{
		Temperature: env.Temperature.Fahrenheit(),
		Humidity:    float64(env.Humidity) / float64(physic.PercentRH),
	}
}
