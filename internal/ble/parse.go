package ble

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sensor payload format (little-endian): magic 0x01 0xD0, device_id uint32,
// reading_id uint32, temperature float32 (°C), pressure float32 (hPa),
// humidity float32 (%rH). 22 bytes total.
const (
	sensorPayloadMagic0 = 0x01
	sensorPayloadMagic1 = 0xD0
	sensorPayloadLen    = 22
)

// SensorReading is a parsed BLE sensor advertisement.
type SensorReading struct {
	DeviceID    uint32
	ReadingID   uint32
	Temperature float64
	Pressure    float64
	Humidity    float64
}

// ParseSensorPayload parses manufacturer data from a Pico sensor advertisement.
func ParseSensorPayload(data []byte) (SensorReading, error) {
	if len(data) < sensorPayloadLen {
		return SensorReading{}, fmt.Errorf("payload too short: %d", len(data))
	}
	if data[0] != sensorPayloadMagic0 || data[1] != sensorPayloadMagic1 {
		return SensorReading{}, fmt.Errorf("invalid magic: %02X %02X", data[0], data[1])
	}
	f32 := func(off int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4])))
	}
	return SensorReading{
		DeviceID:    binary.LittleEndian.Uint32(data[2:6]),
		ReadingID:   binary.LittleEndian.Uint32(data[6:10]),
		Temperature: f32(10),
		Pressure:    f32(14),
		Humidity:    f32(18),
	}, nil
}
