package api

import (
	"log/slog"
	"net/http"
)

// healthHandler serves liveness and readiness probes.
type healthHandler struct {
	engine Engine
	logger *slog.Logger
}

// health is a liveness probe for container orchestration.
func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// ready reports readiness: the server can answer once a context cache
// handle is held.
func (h *healthHandler) ready(w http.ResponseWriter, _ *http.Request) {
	if h.engine == nil || !h.engine.Ready() {
		http.Error(w, "context cache not primed", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
