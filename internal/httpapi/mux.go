package httpapi

import (
	"log/slog"
	"net/http"
)

// Deps are the bridge components exposed over HTTP. Journal and Link may be
// nil.
type Deps struct {
	DeviceID   string
	LiveSensor bool
	Status     StatusSource
	Indicator  Indicator
	Link       LinkState
	Journal    JournalReader
	Metrics    http.Handler
	Logger     *slog.Logger
}

func NewMux(d Deps) *http.ServeMux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	mux := http.NewServeMux()

	var journal pinger
	if d.Journal != nil {
		journal = d.Journal
	}
	registerHealthcheck(mux, journal, d.Logger)

	api := &statusAPI{
		deviceID:   d.DeviceID,
		liveSensor: d.LiveSensor,
		status:     d.Status,
		indicator:  d.Indicator,
		link:       d.Link,
		journal:    d.Journal,
		logger:     d.Logger,
	}
	mux.HandleFunc("GET /api/v1/status", api.handleStatus)
	mux.HandleFunc("POST /api/v1/indicator/toggle", api.handleToggle)
	mux.HandleFunc("GET /api/v1/journal/uplink", api.handleUplinks)
	mux.HandleFunc("GET /api/v1/journal/commands", api.handleCommands)

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	return mux
}
