package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// testPolicy keeps retry tests fast.
func testPolicy(attempts int) retryPolicy {
	return retryPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxAttempts:     attempts,
	}
}

func TestWithBackoff_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	}

	err := withBackoff(context.Background(), testPolicy(6), op)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_StopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	op := func() error {
		calls++
		return errors.New("unavailable")
	}

	err := withBackoff(context.Background(), testPolicy(6), op)
	require.Error(t, err)
	assert.Equal(t, 6, calls)
}

func TestWithBackoff_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	op := func() error {
		calls++
		return backoff.Permanent(sentinel)
	}

	err := withBackoff(context.Background(), testPolicy(6), op)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withBackoff(ctx, testPolicy(6), func() error {
		calls++
		return errors.New("unavailable")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"rate limited", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, false},
		{"server error", genai.APIError{Code: 503, Status: "UNAVAILABLE"}, false},
		{"internal error", genai.APIError{Code: 500, Status: "INTERNAL"}, false},
		{"invalid argument", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, true},
		{"not found", genai.APIError{Code: 404, Status: "NOT_FOUND"}, true},
		{"transport error", errors.New("connection reset by peer"), false},
		{"wrapped api error", fmt.Errorf("call failed: %w", genai.APIError{Code: 400}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retryable(tt.err)
			require.Error(t, got)

			var perm *backoff.PermanentError
			assert.Equal(t, tt.permanent, errors.As(got, &perm))
		})
	}
}

func TestRetryable_Nil(t *testing.T) {
	assert.NoError(t, retryable(nil))
}

func TestIsInvalidArgument(t *testing.T) {
	assert.True(t, IsInvalidArgument(genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}))
	assert.True(t, IsInvalidArgument(fmt.Errorf("generating answer: %w", genai.APIError{Code: 400})))
	assert.False(t, IsInvalidArgument(genai.APIError{Code: 429}))
	assert.False(t, IsInvalidArgument(errors.New("connection reset")))
	assert.False(t, IsInvalidArgument(nil))
}
