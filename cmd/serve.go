package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/api"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/gemini"
	"github.com/docent-ai/docent/internal/prompt"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // generation + cleaning can be slow
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP server.
// Startup is fail-fast: missing environment variables or prompt files abort
// before the listener opens.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	systemInstruction, err := prompt.LoadSystemInstructions(cfg.SystemInstructionsPath)
	if err != nil {
		return fmt.Errorf("loading system instructions: %w", err)
	}

	tmpl, err := prompt.LoadTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return fmt.Errorf("loading prompt template: %w", err)
	}

	addr := cfg.Addr()
	if len(os.Args) > 2 {
		addr = os.Args[2]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting docent", "version", Version, "model", cfg.ModelName)

	client, err := gemini.NewClient(ctx, gemini.Config{
		ProjectID:   cfg.ProjectID,
		Location:    cfg.Location,
		ModelName:   cfg.ModelName,
		CacheName:   cfg.CacheName,
		DocumentURI: cfg.DocumentURI(),
		CacheTTL:    cfg.CacheTTL,
	}, logger.With("component", "gemini"))
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	engine := answer.NewEngine(client, tmpl, systemInstruction, logger.With("component", "answer"))
	if err := engine.Prime(ctx); err != nil {
		return fmt.Errorf("priming context cache: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Engine:      engine,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready", "addr", addr, "cache", cfg.CacheName)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
