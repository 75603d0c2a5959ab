package ble

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
)

const dedupMaxIDsPerDevice = 500

// Sink receives deduplicated beacon readings. *sensor.Beacon implements it.
type Sink interface {
	Observe(tempC, humidity float64)
}

// SensorHandler turns raw beacon matches into readings for a Sink. When
// DeviceID is non-zero, advertisements from other devices are ignored.
type SensorHandler struct {
	sink     Sink
	deviceID uint32
	logger   *slog.Logger

	dedupMu sync.Mutex
	seen    map[string]map[uint32]struct{}
}

func NewSensorHandler(sink Sink, deviceID uint32, logger *slog.Logger) *SensorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SensorHandler{
		sink:     sink,
		deviceID: deviceID,
		logger:   logger,
		seen:     make(map[string]map[uint32]struct{}),
	}
}

// HandleMatch parses m and forwards it to the sink unless it is a repeat of
// an advertisement already seen from the same address.
func (h *SensorHandler) HandleMatch(m Match) {
	sr, err := ParseSensorPayload(m.Data)
	if err != nil {
		h.logger.Debug("ignore non-sensor payload", "addr", m.Address, "error", err)
		return
	}
	if h.deviceID != 0 && sr.DeviceID != h.deviceID {
		return
	}
	if !h.firstSighting(m.Address, sr.ReadingID) {
		return
	}

	h.sink.Observe(sr.Temperature, sr.Humidity)
	h.logger.Debug("beacon reading",
		"addr", m.Address,
		"device_id", sr.DeviceID,
		"reading_id", sr.ReadingID,
		"rssi", m.RSSI,
		"T", sr.Temperature, "P", sr.Pressure, "H", sr.Humidity,
		"data", hex.EncodeToString(m.Data),
	)
}

func (h *SensorHandler) firstSighting(addr string, readingID uint32) bool {
	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()

	ids := h.seen[addr]
	if ids == nil {
		ids = make(map[uint32]struct{})
		h.seen[addr] = ids
	}
	if _, ok := ids[readingID]; ok {
		return false
	}
	if len(ids) >= dedupMaxIDsPerDevice {
		ids = make(map[uint32]struct{})
		h.seen[addr] = ids
	}
	ids[readingID] = struct{}{}
	return true
}

// StartListener runs listener in the background. A listener that cannot be
// initialized is logged and the bridge carries on without live beacon data.
func (h *SensorHandler) StartListener(ctx context.Context, listener *Listener) {
	go func() {
		if err := listener.Run(ctx, h.HandleMatch); err != nil {
			h.logger.Warn("ble listener could not be initialized; continuing without beacon data", "error", err)
		}
	}()
}
