package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the five required deployment variables.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BUCKET_NAME", "docs-bucket")
	t.Setenv("BLOB_NAME", "handbook.md")
	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("LOCATION", "us-central1")
	t.Setenv("CACHE_NAME", "docent-cache")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir()) // no config.yaml = pure defaults

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docs-bucket", cfg.BucketName)
	assert.Equal(t, "handbook.md", cfg.BlobName)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultModelName, cfg.ModelName)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, "./system_instructions.txt", cfg.SystemInstructionsPath)
	assert.Equal(t, "./prompt_template.txt", cfg.PromptTemplatePath)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.TrustProxy)
	assert.Equal(t, 60, cfg.RateBurst)
}

func TestLoad_MissingRequiredEnv(t *testing.T) {
	tests := []struct {
		name   string
		unset  string
		others []string
	}{
		{"bucket", "BUCKET_NAME", nil},
		{"blob", "BLOB_NAME", nil},
		{"project", "PROJECT_ID", nil},
		{"location", "LOCATION", nil},
		{"cache name", "CACHE_NAME", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")
			t.Chdir(t.TempDir())

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingEnv)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestLoad_PortOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":9090", cfg.Addr())
}

func TestLoad_OptionalOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DOCENT_MODEL_NAME", "gemini-2.0-flash-001")
	t.Setenv("DOCENT_CACHE_TTL", "24h")
	t.Setenv("DOCENT_RATE_BURST", "5")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash-001", cfg.ModelName)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.RateBurst)
}

func TestValidate(t *testing.T) {
	valid := Config{
		BucketName:  "b",
		BlobName:    "o.md",
		ProjectID:   "p",
		Location:    "us-central1",
		CacheName:   "c",
		Port:        8080,
		ModelName:   DefaultModelName,
		CacheTTL:    DefaultCacheTTL,
		CORSOrigins: []string{"*"},
		RateBurst:   60,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"port too low", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"port too high", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
		{"empty model", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, ErrInvalidCacheTTL},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Hour }, ErrInvalidCacheTTL},
		{"zero burst", func(c *Config) { c.RateBurst = 0 }, ErrInvalidRateBurst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	assert.True(t, errors.Is(cfg.Validate(), ErrConfigNil))
}

func TestDocumentURI(t *testing.T) {
	cfg := Config{BucketName: "docs-bucket", BlobName: "kb/handbook.md"}
	assert.Equal(t, "gs://docs-bucket/kb/handbook.md", cfg.DocumentURI())
}
