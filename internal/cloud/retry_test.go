// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// =============================================================================
// BACKOFF TESTS
// =============================================================================

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 0},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{5, 8 * time.Second},
		{6, 10 * time.Second},
		{30, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Backoff(tt.n))
		})
	}
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryPolicy_Do(t *testing.T) {
	t.Run("succeeds after transient errors", func(t *testing.T) {
		calls := 0
		var retries []int
		err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: slow down", ErrRateLimited)
			}
			return nil
		}, func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) })

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retries)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
			calls++
			return ErrAuthFailed
		}, nil)

		assert.ErrorIs(t, err, ErrAuthFailed)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := fastPolicy(2).Do(context.Background(), func(context.Context) error {
			calls++
			return &ProviderError{Provider: "test", Status: 503, Message: "unavailable"}
		}, nil)

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, 503, perr.Status)
		assert.Contains(t, err.Error(), "max retries exceeded")
		assert.Equal(t, 2, calls)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
		err := p.Do(ctx, func(context.Context) error {
			cancel()
			return ErrRateLimited
		}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"googleapi 401", &googleapi.Error{Code: 401, Message: "bad key"}, ErrAuthFailed},
		{"googleapi 403", &googleapi.Error{Code: 403, Message: "denied"}, ErrAuthFailed},
		{"googleapi 404", &googleapi.Error{Code: 404, Message: "no model"}, ErrModelNotFound},
		{"googleapi 429", &googleapi.Error{Code: 429, Message: "quota"}, ErrRateLimited},
		{"wrapped googleapi", fmt.Errorf("rpc: %w", &googleapi.Error{Code: 402}), ErrQuotaExceeded},
		{"openai style 429", errors.New("error, status code: 429, status: 429 Too Many Requests, message: slow"), ErrRateLimited},
		{"openai style 401", errors.New("error, status code: 401, status: 401 Unauthorized, message: no"), ErrAuthFailed},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyError("test", tt.err), tt.want)
		})
	}
}

func TestClassifyError_ProviderError(t *testing.T) {
	err := classifyError(ProviderGemini, &googleapi.Error{Code: 500, Message: "internal"})

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 500, perr.Status)
	assert.Equal(t, "gemini error (HTTP 500): internal", err.Error())
	assert.True(t, IsRetryable(err))

	plain := classifyError(ProviderOpenAI, errors.New("connection reset"))
	require.ErrorAs(t, plain, &perr)
	assert.Equal(t, 0, perr.Status)
	assert.False(t, IsRetryable(plain))

	assert.NoError(t, classifyError("x", nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: x", ErrRateLimited)))
	assert.True(t, IsRetryable(&ProviderError{Status: 502}))
	assert.False(t, IsRetryable(&ProviderError{Status: 400}))
	assert.False(t, IsRetryable(ErrNotConfigured))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestKeyFingerprint(t *testing.T) {
	assert.Equal(t, "none", KeyFingerprint(""))
	fp := KeyFingerprint("AIza-secret")
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "secret")
	assert.Equal(t, fp, KeyFingerprint("AIza-secret"))
}
