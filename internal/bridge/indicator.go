package bridge

import (
	"log/slog"

	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/display"
	"cloudpico-bridge/internal/metrics"
)

// IndicatorControl writes the indicator state and mirrors it to the display
// backlight. It is shared by the downlink loop and the local toggle.
type IndicatorControl struct {
	state   *device.State
	display display.Display
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewIndicatorControl(state *device.State, d display.Display, m *metrics.Metrics, logger *slog.Logger) *IndicatorControl {
	if logger == nil {
		logger = slog.Default()
	}
	m.ObserveIndicator(state.Color())
	return &IndicatorControl{state: state, display: d, metrics: m, logger: logger}
}

// Apply executes cmd and reports whether it wrote the state. Unknown
// commands leave state and display untouched.
func (c *IndicatorControl) Apply(cmd device.Command) bool {
	if !cmd.Apply(c.state) {
		return false
	}
	c.publish()
	return true
}

// Toggle flips the indicator and returns the new color.
func (c *IndicatorControl) Toggle() device.Color {
	c.state.Toggle()
	return c.publish()
}

func (c *IndicatorControl) Color() device.Color {
	return c.state.Color()
}

// publish pushes the current state to the gauge and the backlight.
func (c *IndicatorControl) publish() device.Color {
	color := c.state.Color()
	c.metrics.ObserveIndicator(color)
	if err := c.display.SetColor(display.IndicatorFor(color)); err != nil {
		c.metrics.DisplayFaults.Inc()
		c.logger.Warn("display color update failed", "color", color, "error", err)
	}
	return color
}
