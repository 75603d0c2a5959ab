package sensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// GrovePi firmware commands. Every request is a 5-byte block written to
// register 1: [1, cmd, arg1, arg2, arg3].
const (
	grovePiRegister   = 1
	grovePiCmdVersion = 8
	grovePiCmdDHT     = 40

	dhtResponseLen     = 9 // echo byte + float32 temp + float32 humidity
	versionResponseLen = 4 // echo byte + major, minor, patch
)

// DHT module types understood by the GrovePi firmware.
const (
	DHT11 byte = 0
	DHT22 byte = 1
)

// GrovePiDHT reads a DHT temperature/humidity probe attached to a digital
// port of a GrovePi board.
type GrovePiDHT struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	pin    byte
	model  byte
	settle time.Duration
}

// NewGrovePiDHT probes the board by reading its firmware version so that a
// missing board is reported at startup rather than on the first sample.
func NewGrovePiDHT(bus i2c.Bus, addr uint16, pin int, model string) (*GrovePiDHT, error) {
	return newGrovePiDHT(bus, addr, pin, model, 600*time.Millisecond)
}

func newGrovePiDHT(bus i2c.Bus, addr uint16, pin int, model string, settle time.Duration) (*GrovePiDHT, error) {
	if pin < 0 || pin > 8 {
		return nil, fmt.Errorf("grovepi: digital pin %d out of range", pin)
	}
	var m byte
	switch model {
	case "dht11":
		m = DHT11
	case "dht22":
		m = DHT22
	default:
		return nil, fmt.Errorf("grovepi: unknown DHT model %q", model)
	}

	g := &GrovePiDHT{
		dev:    &i2c.Dev{Bus: bus, Addr: addr},
		pin:    byte(pin),
		model:  m,
		settle: settle,
	}
	if _, err := g.FirmwareVersion(); err != nil {
		return nil, err
	}
	return g, nil
}

// FirmwareVersion returns the board firmware as "major.minor.patch".
func (g *GrovePiDHT) FirmwareVersion() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf, err := g.request(grovePiCmdVersion, 0, 0, versionResponseLen)
	if err != nil {
		return "", fmt.Errorf("grovepi: firmware version: %w", err)
	}
	return fmt.Sprintf("%d.%d.%d", buf[1], buf[2], buf[3]), nil
}

func (g *GrovePiDHT) Measure() (Measurement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf, err := g.request(grovePiCmdDHT, g.pin, g.model, dhtResponseLen)
	if err != nil {
		return Measurement{}, fmt.Errorf("grovepi: dht read: %w", err)
	}
	tempC := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[1:5])))
	hum := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[5:9])))

	// The firmware reports NaN (or -1 on older builds) when the probe times out.
	if err := checkReading(tempC, hum); err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Temperature: celsiusToFahrenheit(tempC),
		Humidity:    hum,
	}, nil
}

// Close is a no-op; the bus is owned by the caller.
func (g *GrovePiDHT) Close() error { return nil }

func (g *GrovePiDHT) request(cmd, a1, a2 byte, respLen int) ([]byte, error) {
	if _, err := g.dev.Write([]byte{grovePiRegister, cmd, a1, a2, 0}); err != nil {
		return nil, fmt.Errorf("write command %d: %w", cmd, err)
	}
	if g.settle > 0 {
		time.Sleep(g.settle)
	}
	buf := make([]byte, respLen)
	if err := g.dev.Tx([]byte{grovePiRegister}, buf); err != nil {
		return nil, fmt.Errorf("read response %d: %w", cmd, err)
	}
	return buf, nil
}
