package gemini

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// retryPolicy configures the jittered exponential backoff around vendor calls.
type retryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// defaultRetryPolicy caps delays at 60s and stops after 6 attempts.
func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     60 * time.Second,
		MaxAttempts:     6,
	}
}

// withBackoff runs op with randomized exponential backoff under pol.
// op must return backoff.Permanent for errors that should not retry.
func withBackoff(ctx context.Context, pol retryPolicy, op backoff.Operation) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = pol.InitialInterval
	expo.MaxInterval = pol.MaxInterval
	expo.MaxElapsedTime = 0 // bounded by attempts, not wall clock

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(pol.MaxAttempts-1)), ctx)
	return backoff.Retry(op, bo)
}

// retryable classifies a vendor call error: rate limits, server errors and
// transport failures retry; other API errors (4xx) are permanent.
func retryable(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}

	// Non-API errors are transport-level (connection reset, timeout); retry.
	return err
}

// IsInvalidArgument reports whether err is the vendor's INVALID_ARGUMENT
// response, which typically signals an expired or evicted context cache.
func IsInvalidArgument(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == 400
}
