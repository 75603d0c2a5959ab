package sensor

import (
	"sync"
	"time"
)

// Beacon is a Sensor fed by BLE advertisements. It keeps only the most
// recent observation and refuses to report it once it is older than maxAge.
type Beacon struct {
	mu     sync.Mutex
	last   Measurement
	seenAt time.Time
	have   bool
	bad    error
	maxAge time.Duration
	now    func() time.Time
}

func NewBeacon(maxAge time.Duration) *Beacon {
	return &Beacon{maxAge: maxAge, now: time.Now}
}

// Observe records a beacon reading. tempC is in degrees Celsius as sent
// over the air. An implausible reading replaces the previous one and is
// reported by Measure as ErrBadReading.
func (b *Beacon) Observe(tempC, humidity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bad = checkReading(tempC, humidity)
	if b.bad == nil {
		b.last = Measurement{Temperature: celsiusToFahrenheit(tempC), Humidity: humidity}
	}
	b.seenAt = b.now()
	b.have = true
}

func (b *Beacon) Measure() (Measurement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.have {
		return Measurement{}, ErrNoReading
	}
	if b.maxAge > 0 && b.now().Sub(b.seenAt) > b.maxAge {
		return Measurement{}, ErrStaleReading
	}
	if b.bad != nil {
		return Measurement{}, b.bad
	}
	return b.last, nil
}

func (b *Beacon) Close() error { return nil }
