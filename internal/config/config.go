// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml)
//  3. Default values
//
// The five deployment environment variables (BUCKET_NAME, BLOB_NAME,
// PROJECT_ID, LOCATION, CACHE_NAME) are required; Load fails fast when any
// of them is absent. Everything else has a default.
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrapped with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingEnv indicates a required environment variable is missing.
	ErrMissingEnv = errors.New("missing required environment variable")

	// ErrInvalidPort indicates the HTTP port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidCacheTTL indicates the context cache TTL is not positive.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrInvalidRateBurst indicates the rate limiter burst is not positive.
	ErrInvalidRateBurst = errors.New("invalid rate burst")
)

const (
	// DefaultModelName is the Gemini model used for generation and cleaning.
	// Context caching requires a pinned model version.
	DefaultModelName = "gemini-1.5-flash-002"

	// DefaultCacheTTL is the context cache time-to-live (360 days).
	DefaultCacheTTL = 360 * 24 * time.Hour

	// DefaultPort is the HTTP listen port when PORT is unset.
	DefaultPort = 8080
)

// Config stores application configuration.
type Config struct {
	// Deployment environment (required, no defaults)
	BucketName string `mapstructure:"bucket_name" json:"bucket_name"` // Cloud Storage bucket with the context document
	BlobName   string `mapstructure:"blob_name" json:"blob_name"`     // Object path of the markdown document
	ProjectID  string `mapstructure:"project_id" json:"project_id"`   // Google Cloud project
	Location   string `mapstructure:"location" json:"location"`       // Vertex AI region (e.g. "us-central1")
	CacheName  string `mapstructure:"cache_name" json:"cache_name"`   // Display name of the context cache

	// HTTP server
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"` // "*" allows any origin
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`   // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`     // Per-IP token bucket burst

	// Model
	ModelName string        `mapstructure:"model_name" json:"model_name"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`

	// Local prompt inputs
	SystemInstructionsPath string `mapstructure:"system_instructions_path" json:"system_instructions_path"`
	PromptTemplatePath     string `mapstructure:"prompt_template_path" json:"prompt_template_path"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("system_instructions_path", "./system_instructions.txt")
	v.SetDefault("prompt_template_path", "./prompt_template.txt")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment variables explicitly.
// The five required variables keep their deployment names; optional
// overrides use the DOCENT_ prefix.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("bucket_name", "BUCKET_NAME")
	mustBind("blob_name", "BLOB_NAME")
	mustBind("project_id", "PROJECT_ID")
	mustBind("location", "LOCATION")
	mustBind("cache_name", "CACHE_NAME")
	mustBind("port", "PORT")

	mustBind("model_name", "DOCENT_MODEL_NAME")
	mustBind("cache_ttl", "DOCENT_CACHE_TTL")
	mustBind("system_instructions_path", "DOCENT_SYSTEM_INSTRUCTIONS")
	mustBind("prompt_template_path", "DOCENT_PROMPT_TEMPLATE")
	mustBind("cors_origins", "DOCENT_CORS_ORIGINS")
	mustBind("trust_proxy", "DOCENT_TRUST_PROXY")
	mustBind("rate_burst", "DOCENT_RATE_BURST")
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Required deployment variables (fail-fast at startup)
	required := []struct {
		value  string
		envVar string
	}{
		{c.BucketName, "BUCKET_NAME"},
		{c.BlobName, "BLOB_NAME"},
		{c.ProjectID, "PROJECT_ID"},
		{c.Location, "LOCATION"},
		{c.CacheName, "CACHE_NAME"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingEnv, r.envVar)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPort, c.Port)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: must be positive, got %v", ErrInvalidCacheTTL, c.CacheTTL)
	}

	if c.RateBurst < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidRateBurst, c.RateBurst)
	}

	return nil
}

// Addr returns the HTTP listen address derived from Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DocumentURI returns the Cloud Storage URI of the context document.
func (c *Config) DocumentURI() string {
	return fmt.Sprintf("gs://%s/%s", c.BucketName, c.BlobName)
}
