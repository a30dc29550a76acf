// Package answer holds the request-serving engine: render prompt, generate
// against the context cache, clean the result.
//
// The engine owns the current context-cache handle. The original deployment
// kept this as process-global state; here it is explicit, guarded by a mutex
// so refreshes have a single writer at a time.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docent-ai/docent/internal/gemini"
	"github.com/docent-ai/docent/internal/prompt"
)

// ModelClient is the vendor surface the engine needs.
// Implemented by *gemini.Client.
type ModelClient interface {
	EnsureCache(ctx context.Context, systemInstruction string) (*gemini.ContextCache, error)
	Generate(ctx context.Context, cache *gemini.ContextCache, prompt string) (string, error)
	Clean(ctx context.Context, answer string) (string, error)
}

// Engine answers questions against the pre-warmed context cache.
// Safe for concurrent use.
type Engine struct {
	client            ModelClient
	tmpl              *prompt.Template
	systemInstruction string
	logger            *slog.Logger

	mu    sync.Mutex
	cache *gemini.ContextCache
}

// NewEngine creates an Engine. Call Prime before serving to warm the cache
// handle; an unprimed engine ensures the cache lazily on first use.
func NewEngine(client ModelClient, tmpl *prompt.Template, systemInstruction string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:            client,
		tmpl:              tmpl,
		systemInstruction: systemInstruction,
		logger:            logger,
	}
}

// Prime ensures the context cache exists and stores its handle.
func (e *Engine) Prime(ctx context.Context) error {
	return e.refresh(ctx)
}

// Ready reports whether a context cache handle is held.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache != nil
}

// Answer renders the prompt for question and messages, generates an answer
// against the context cache, and cleans it. Cleaning is best-effort: if the
// cleaning call fails, the raw answer is returned.
//
// When generation fails with the vendor's invalid-argument error (an expired
// or evicted cache), the engine refreshes the cache handle and still returns
// the error: this request gets the fallback answer, the next one uses the
// fresh cache.
func (e *Engine) Answer(ctx context.Context, question string, messages []prompt.Message) (string, error) {
	cache, err := e.currentOrRefresh(ctx)
	if err != nil {
		return "", fmt.Errorf("ensuring context cache: %w", err)
	}

	raw, err := e.client.Generate(ctx, cache, e.tmpl.Render(question, messages))
	if err != nil {
		if gemini.IsInvalidArgument(err) {
			e.logger.Info("context cache rejected by model, refreshing", "cache", cache.Name, "error", err)
			if rerr := e.refresh(ctx); rerr != nil {
				e.logger.Error("context cache refresh failed", "error", rerr)
			}
			return "", fmt.Errorf("stale context cache: %w", err)
		}
		return "", err
	}

	cleaned, err := e.client.Clean(ctx, raw)
	if err != nil {
		e.logger.Warn("cleaning answer failed, returning raw answer", "error", err)
		return raw, nil
	}
	return cleaned, nil
}

// currentOrRefresh returns the held cache handle, ensuring one on first use.
func (e *Engine) currentOrRefresh(ctx context.Context) (*gemini.ContextCache, error) {
	e.mu.Lock()
	cache := e.cache
	e.mu.Unlock()

	if cache != nil {
		return cache, nil
	}
	if err := e.refresh(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache, nil
}

// refresh looks up or recreates the context cache and swaps the handle.
// The mutex is held across the vendor call so only one refresh runs at a time.
func (e *Engine) refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cache, err := e.client.EnsureCache(ctx, e.systemInstruction)
	if err != nil {
		return err
	}
	e.cache = cache
	return nil
}
