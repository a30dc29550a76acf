// Package gemini wraps the Vertex AI generative-language API for docent.
//
// The vendor owns the model, the context-cache store and generation
// semantics; this package only orchestrates calls: create or look up the
// named context cache, generate an answer against it, and clean the answer
// with a second model call. Transient failures retry with jittered
// exponential backoff (see retry.go).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// cleanInstruction is the system instruction for the answer-cleaning call.
const cleanInstruction = "Convert markdown syntax to plain text, keep everything in a single paragraph, correct spelling and remove emojis."

// documentMIMEType is the MIME type of the cached context document.
const documentMIMEType = "text/markdown"

var (
	// ErrCacheNotFound indicates no context cache carries the configured
	// display name. Distinct from transport errors so callers can fall
	// back to creating one.
	ErrCacheNotFound = errors.New("context cache not found")

	// ErrEmptyAnswer indicates the model returned no usable candidate text.
	ErrEmptyAnswer = errors.New("empty answer from model")
)

// ContextCache is the local handle to a vendor-managed context cache.
// Lifecycle (TTL, eviction) is enforced server-side; this handle only
// names the resource for subsequent generation calls.
type ContextCache struct {
	Name        string // Vendor resource name (projects/.../cachedContents/...)
	DisplayName string
	Model       string
	ExpireTime  time.Time
}

// Config holds the vendor-facing configuration.
type Config struct {
	ProjectID string
	Location  string
	ModelName string

	// Context cache identity and content
	CacheName   string // display name used for lookup
	DocumentURI string // gs:// URI of the markdown context document
	CacheTTL    time.Duration
}

// vendorAPI is the slice of the genai SDK the client calls. Tests substitute
// a scripted implementation.
type vendorAPI interface {
	createCache(ctx context.Context, model string, cfg *genai.CreateCachedContentConfig) (*genai.CachedContent, error)
	listCaches(ctx context.Context) iter.Seq2[*genai.CachedContent, error]
	generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// genaiVendor implements vendorAPI on a real *genai.Client.
type genaiVendor struct {
	c *genai.Client
}

func (g genaiVendor) createCache(ctx context.Context, model string, cfg *genai.CreateCachedContentConfig) (*genai.CachedContent, error) {
	return g.c.Caches.Create(ctx, model, cfg)
}

func (g genaiVendor) listCaches(ctx context.Context) iter.Seq2[*genai.CachedContent, error] {
	return g.c.Caches.All(ctx)
}

func (g genaiVendor) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.c.Models.GenerateContent(ctx, model, contents, cfg)
}

// Client calls the Vertex AI API. Safe for concurrent use.
type Client struct {
	api    vendorAPI
	cfg    Config
	retry  retryPolicy
	logger *slog.Logger
}

// NewClient creates a Client against the Vertex AI backend using application
// default credentials.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.ProjectID,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{
		api:    genaiVendor{c: gc},
		cfg:    cfg,
		retry:  defaultRetryPolicy(),
		logger: logger,
	}, nil
}

// CreateCache creates a new context cache holding the system instruction and
// the context document, with the configured TTL and display name. Transient
// failures retry with backoff.
func (c *Client) CreateCache(ctx context.Context, systemInstruction string) (*ContextCache, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{genai.NewPartFromURI(c.cfg.DocumentURI, documentMIMEType)},
			genai.RoleUser,
		),
	}

	var cc *genai.CachedContent
	op := func() error {
		var err error
		cc, err = c.api.createCache(ctx, c.cfg.ModelName, &genai.CreateCachedContentConfig{
			DisplayName:       c.cfg.CacheName,
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			Contents:          contents,
			TTL:               c.cfg.CacheTTL,
		})
		return retryable(err)
	}

	if err := withBackoff(ctx, c.retry, op); err != nil {
		return nil, fmt.Errorf("creating context cache: %w", err)
	}

	c.logger.Info("created context cache",
		"name", cc.Name,
		"display_name", cc.DisplayName,
		"expires", cc.ExpireTime,
	)
	return fromCachedContent(cc), nil
}

// FetchCache looks up an existing context cache by display name. A missing
// cache is permanent (ErrCacheNotFound, no retry); transient listing
// failures retry with backoff.
func (c *Client) FetchCache(ctx context.Context) (*ContextCache, error) {
	var found *genai.CachedContent
	op := func() error {
		for cc, err := range c.api.listCaches(ctx) {
			if err != nil {
				return retryable(err)
			}
			if cc.DisplayName == c.cfg.CacheName {
				found = cc
				return nil
			}
		}
		return backoff.Permanent(fmt.Errorf("%w: display name %q", ErrCacheNotFound, c.cfg.CacheName))
	}

	if err := withBackoff(ctx, c.retry, op); err != nil {
		if errors.Is(err, ErrCacheNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("listing context caches: %w", err)
	}

	c.logger.Info("found context cache", "name", found.Name)
	return fromCachedContent(found), nil
}

// EnsureCache fetches the named context cache, creating it when the lookup
// fails for any reason.
func (c *Client) EnsureCache(ctx context.Context, systemInstruction string) (*ContextCache, error) {
	cc, err := c.FetchCache(ctx)
	if err == nil {
		return cc, nil
	}

	c.logger.Info("creating new context cache", "reason", err)
	return c.CreateCache(ctx, systemInstruction)
}

// Generate produces an answer for prompt using the given context cache.
// A cached-content call must run on the model the cache was created under,
// so the cache's model takes precedence over the configured one. Transient
// failures retry with backoff; the answer is the first candidate's text,
// trimmed.
func (c *Client) Generate(ctx context.Context, cache *ContextCache, prompt string) (string, error) {
	model := cache.Model
	if model == "" {
		model = c.cfg.ModelName
	}

	var answer string
	op := func() error {
		resp, err := c.api.generate(ctx, model, genai.Text(prompt),
			&genai.GenerateContentConfig{CachedContent: cache.Name})
		if err != nil {
			return retryable(err)
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return backoff.Permanent(ErrEmptyAnswer)
		}
		answer = text
		return nil
	}

	if err := withBackoff(ctx, c.retry, op); err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return answer, nil
}

// Clean reformats answer into a single plain-text paragraph via a second
// generation call without the cache. Callers should fall back to the
// original answer when Clean fails.
func (c *Client) Clean(ctx context.Context, answer string) (string, error) {
	var cleaned string

	op := func() error {
		resp, err := c.api.generate(ctx, c.cfg.ModelName, genai.Text(answer),
			&genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(cleanInstruction, genai.RoleUser),
			})
		if err != nil {
			return retryable(err)
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return backoff.Permanent(ErrEmptyAnswer)
		}
		cleaned = text
		return nil
	}

	if err := withBackoff(ctx, c.retry, op); err != nil {
		return "", fmt.Errorf("cleaning answer: %w", err)
	}
	return cleaned, nil
}

// fromCachedContent converts the vendor type to the local handle.
func fromCachedContent(cc *genai.CachedContent) *ContextCache {
	return &ContextCache{
		Name:        cc.Name,
		DisplayName: cc.DisplayName,
		Model:       cc.Model,
		ExpireTime:  cc.ExpireTime,
	}
}
