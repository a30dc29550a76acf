package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/docent-ai/docent/internal/prompt"
)

// FallbackAnswer is returned to callers whenever answering fails.
const FallbackAnswer = "I couldn't find an answer, please try again."

// maxBodyBytes limits POST bodies to 1 MiB.
const maxBodyBytes = 1 << 20

// Engine produces answers for the ask endpoint. Implemented by *answer.Engine.
type Engine interface {
	Answer(ctx context.Context, question string, messages []prompt.Message) (string, error)
	Ready() bool
}

// askRequest is the POST / body.
type askRequest struct {
	Question string           `json:"question"`
	Messages []prompt.Message `json:"messages"`
}

// askResponse is the POST / body. Error is set only on failure, and the
// status is 200 either way: callers inspect the JSON, not the status code.
type askResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// answerHandler serves the root endpoint.
type answerHandler struct {
	engine Engine
	logger *slog.Logger
}

// liveness answers GET / with a bare 200 regardless of application state.
func (h *answerHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ask answers POST /. Every failure (malformed body, model error, expired
// cache) converts to the error-shaped 200 response.
func (h *answerHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("malformed ask request", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeJSON(w, http.StatusOK, askResponse{Error: err.Error(), Answer: FallbackAnswer}, h.logger)
		return
	}

	answer, err := h.engine.Answer(r.Context(), req.Question, req.Messages)
	if err != nil {
		h.logger.Error("answering failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusOK, askResponse{Error: err.Error(), Answer: FallbackAnswer}, h.logger)
		return
	}

	h.logger.Info("answered question",
		"answer_len", len(answer),
		"history", len(req.Messages),
		"request_id", requestIDFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, askResponse{Answer: answer}, h.logger)
}
