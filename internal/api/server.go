// Package api provides the HTTP surface of docent.
//
// Endpoints:
//
//	GET     /        → 200 "OK" (liveness, always succeeds)
//	POST    /        → 200 {"answer": ...} or {"error": ..., "answer": <fallback>}
//	OPTIONS /        → 204 (CORS preflight, handled in middleware)
//	GET     /health  → 200 {"status":"ok"}
//	GET     /ready   → 200 once the context cache is primed, 503 before
//
// File structure:
//   - server.go: routes and middleware stack
//   - answer.go: root endpoint (liveness + ask)
//   - health.go: health probes
//   - middleware.go: recovery, request ID, logging, CORS
//   - ratelimit.go: per-IP token bucket
//   - response.go: JSON response helpers
package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Engine      Engine   // Required
	CORSOrigins []string // Allowed origins; "*" allows any
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the docent HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("answer engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &answerHandler{engine: cfg.Engine, logger: logger}
	hh := &healthHandler{engine: cfg.Engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", ah.liveness)
	mux.HandleFunc("POST /{$}", ah.ask)
	mux.HandleFunc("GET /health", hh.health)
	mux.HandleFunc("GET /ready", hh.ready)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newIPLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// CORS sits before RateLimit so preflight OPTIONS is answered without
	// consuming tokens.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
