// Package telemetry builds the readings the bridge uplinks and formats them
// for the wire, the LCD and the status line.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"cloudpico-bridge/internal/device"
)

// Reading is one telemetry sample. The JSON field names are consumed by the
// cloud side and must not change.
type Reading struct {
	DeviceID    string       `json:"DeviceId"`
	LcdColor    device.Color `json:"LcdColor"`
	Temperature float64      `json:"Temperature"`
	Humidity    float64      `json:"Humidity"`
	WindSpeed   float64      `json:"WindSpeed"`
	LiveData    bool         `json:"LiveData"`
}

// Marshal encodes r as the uplink payload.
func Marshal(r Reading) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return b, nil
}

// Parse decodes an uplink payload produced by Marshal.
func Parse(payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("parse telemetry: %w", err)
	}
	if r.LcdColor != device.ColorGreen && r.LcdColor != device.ColorRed {
		return Reading{}, fmt.Errorf("parse telemetry: invalid LcdColor %q", r.LcdColor)
	}
	return r, nil
}

// LCDText is the two-line text shown on the LCD. The spacing pushes the
// humidity onto the second 16-character line.
func LCDText(r Reading) string {
	return "Temp = " + formatNumber(r.Temperature) + "       Humidity = " + formatNumber(r.Humidity) + "%"
}

// StatusLine is the local diagnostics line for one uplink cycle.
func StatusLine(counter uint64, payload []byte) string {
	return fmt.Sprintf("[%d] Last Telemetry: %s", counter, payload)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
