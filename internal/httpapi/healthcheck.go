package httpapi

import (
	"context"
	"log/slog"
	"net/http"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthchecker struct {
	journal pinger // nil when the journal is disabled
	logger  *slog.Logger
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.journal != nil {
		if err := h.journal.Ping(r.Context()); err != nil {
			h.logger.Error("failed to check journal connectivity", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check journal connectivity")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, journal pinger, logger *slog.Logger) {
	h := &healthchecker{journal: journal, logger: logger}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
