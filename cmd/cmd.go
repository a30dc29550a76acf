// Package cmd provides CLI commands for docent.
//
// Commands:
//   - serve: HTTP server answering questions against the context cache
//   - version: version information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docent-ai/docent/internal/log"
)

// Execute is the main entry point for the docent CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{
		Level:     level,
		JSON:      os.Getenv("LOG_FORMAT") == "json",
		AddSource: level == slog.LevelDebug,
	}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("docent - context-cached Q&A service for Gemini")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docent serve [addr]  Start the HTTP server (default: :8080)")
	fmt.Println("  docent --version     Show version information")
	fmt.Println("  docent --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BUCKET_NAME          Required: Cloud Storage bucket with the context document")
	fmt.Println("  BLOB_NAME            Required: object path of the markdown document")
	fmt.Println("  PROJECT_ID           Required: Google Cloud project")
	fmt.Println("  LOCATION             Required: Vertex AI region")
	fmt.Println("  CACHE_NAME           Required: display name of the context cache")
	fmt.Println("  PORT                 Optional: HTTP port (default 8080)")
	fmt.Println("  DEBUG                Optional: enable debug logging")
	fmt.Println("  LOG_FORMAT           Optional: set to 'json' for JSON logs (default text)")
}
