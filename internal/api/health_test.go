package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docent-ai/docent/internal/log"
)

func TestHealth(t *testing.T) {
	h := &healthHandler{logger: log.NewNop()}

	w := httptest.NewRecorder()
	h.health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		engine   Engine
		wantCode int
	}{
		{"primed", &stubEngine{ready: true}, http.StatusOK},
		{"not primed", &stubEngine{ready: false}, http.StatusServiceUnavailable},
		{"nil engine", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &healthHandler{engine: tt.engine, logger: log.NewNop()}

			w := httptest.NewRecorder()
			h.ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
