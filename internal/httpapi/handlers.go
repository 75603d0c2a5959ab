package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cloudpico-bridge/internal/bridge"
	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/journal"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

type StatusSource interface {
	Snapshot() bridge.Status
}

type Indicator interface {
	Color() device.Color
	Toggle() device.Color
}

type JournalReader interface {
	RecentUplinks(ctx context.Context, limit int) ([]journal.UplinkEntry, error)
	RecentCommands(ctx context.Context, limit int) ([]journal.CommandEntry, error)
	Ping(ctx context.Context) error
}

type LinkState interface {
	IsConnected() bool
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	DeviceID   string       `json:"device_id"`
	Indicator  device.Color `json:"indicator"`
	Connected  bool         `json:"connected"`
	LiveSensor bool         `json:"live_sensor"`
	bridge.Status
}

type statusAPI struct {
	deviceID   string
	liveSensor bool
	status     StatusSource
	indicator  Indicator
	link       LinkState
	journal    JournalReader
	logger     *slog.Logger
}

func (a *statusAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		DeviceID:   a.deviceID,
		Indicator:  a.indicator.Color(),
		Connected:  a.link != nil && a.link.IsConnected(),
		LiveSensor: a.liveSensor,
		Status:     a.status.Snapshot(),
	})
}

func (a *statusAPI) handleToggle(w http.ResponseWriter, r *http.Request) {
	color := a.indicator.Toggle()
	a.logger.Info("indicator toggled locally", "color", color)
	writeJSON(w, http.StatusOK, map[string]device.Color{"indicator": color})
}

func (a *statusAPI) handleUplinks(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.journalLimit(w, r)
	if !ok {
		return
	}
	items, err := a.journal.RecentUplinks(r.Context(), limit)
	if err != nil {
		a.logger.Error("read uplink journal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"limit": limit, "items": items})
}

func (a *statusAPI) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.journalLimit(w, r)
	if !ok {
		return
	}
	items, err := a.journal.RecentCommands(r.Context(), limit)
	if err != nil {
		a.logger.Error("read command journal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"limit": limit, "items": items})
}

func (a *statusAPI) journalLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	if a.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return 0, false
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return limit, true
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxLimit {
		return 0, errors.New("'limit' must be <= 1000")
	}
	return n, nil
}
