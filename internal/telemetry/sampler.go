package telemetry

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/sensor"
)

// Baselines are the centres of the synthetic values. Spread is the maximum
// distance from the centre in either direction.
type Baselines struct {
	Temperature float64
	Humidity    float64
	WindSpeed   float64
	Spread      float64
}

// Sampler produces readings from an optional live sensor, falling back to
// synthetic data whenever the sensor is absent or fails.
type Sampler struct {
	deviceID  string
	live      sensor.Sensor
	baselines Baselines
	logger    *slog.Logger
	faults    prometheus.Counter

	mu  sync.Mutex
	rnd *rand.Rand
}

type SamplerOption func(*Sampler)

// WithSensor attaches a live sensor. A nil sensor means none is present.
func WithSensor(s sensor.Sensor) SamplerOption {
	return func(sm *Sampler) { sm.live = s }
}

// WithRand replaces the random source used for synthetic values.
func WithRand(r *rand.Rand) SamplerOption {
	return func(sm *Sampler) { sm.rnd = r }
}

// WithFaultCounter counts sensor failures.
func WithFaultCounter(c prometheus.Counter) SamplerOption {
	return func(sm *Sampler) { sm.faults = c }
}

func NewSampler(deviceID string, b Baselines, logger *slog.Logger, opts ...SamplerOption) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sampler{
		deviceID:  deviceID,
		baselines: b,
		logger:    logger,
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasLiveSensor reports whether a sensor is attached.
func (s *Sampler) HasLiveSensor() bool {
	return s.live != nil
}

// Sample never fails: a sensor error is logged and the reading is synthetic.
func (s *Sampler) Sample(color device.Color) Reading {
	r := s.syntheticReading(color)
	if s.live == nil {
		return r
	}
	m, err := s.live.Measure()
	if err == nil && !finite(m) {
		err = fmt.Errorf("%w: temperature=%v humidity=%v", sensor.ErrBadReading, m.Temperature, m.Humidity)
	}
	if err != nil {
		s.logger.Warn("sensor measurement failed; using synthetic data", "error", err)
		if s.faults != nil {
			s.faults.Inc()
		}
		return r
	}
	return liveReading(r, m)
}

// liveReading overlays a measurement on a synthetic reading. Wind speed has
// no live source and stays synthetic.
func liveReading(base Reading, m sensor.Measurement) Reading {
	base.Temperature = m.Temperature
	base.Humidity = m.Humidity
	base.LiveData = true
	return base
}

// finite reports whether m can be encoded as JSON.
func finite(m sensor.Measurement) bool {
	for _, v := range []float64{m.Temperature, m.Humidity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *Sampler) syntheticReading(color device.Color) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reading{
		DeviceID:    s.deviceID,
		LcdColor:    color,
		Temperature: s.synthetic(s.baselines.Temperature),
		Humidity:    s.synthetic(s.baselines.Humidity),
		WindSpeed:   s.synthetic(s.baselines.WindSpeed),
		LiveData:    false,
	}
}

// synthetic returns base ± spread rounded up to one decimal.
func (s *Sampler) synthetic(base float64) float64 {
	spread := s.baselines.Spread
	v := base + s.rnd.Float64()*2*spread - spread
	return math.Ceil(v*10) / 10
}
