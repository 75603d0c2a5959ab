// Package display drives the local status surface: a two-line text area and
// a tri-level backlight.
package display

import "cloudpico-bridge/internal/device"

// Indicator is the backlight level.
type Indicator int

const (
	IndicatorOff Indicator = iota
	IndicatorRed
	IndicatorGreen
)

func (i Indicator) String() string {
	switch i {
	case IndicatorRed:
		return "red"
	case IndicatorGreen:
		return "green"
	default:
		return "off"
	}
}

// IndicatorFor maps the device color to a backlight level.
func IndicatorFor(c device.Color) Indicator {
	if c == device.ColorGreen {
		return IndicatorGreen
	}
	return IndicatorRed
}

// Display is a status surface. Implementations need not be safe for
// concurrent use; wrap them in a Serialized.
type Display interface {
	SetText(text string) error
	SetColor(ind Indicator) error
}
