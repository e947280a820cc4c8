// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// ADAPTER
// =============================================================================

// Adapter is the cloud router.InferenceAdapter. Only user messages are
// forwarded; the system prompt argument is ignored. The reported time is
// the wall clock around the provider call, retries and limiter waits
// included.
type Adapter struct {
	provider Provider
	limiter  *rate.Limiter
	retry    RetryPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Adapter) { a.retry = p }
}

// WithRateLimit allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Adapter) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewAdapter wraps a provider.
func NewAdapter(provider Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider: provider,
		retry:    DefaultRetryPolicy(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the wrapped provider.
func (a *Adapter) Provider() Provider {
	return a.provider
}

// Invoke implements router.InferenceAdapter.
func (a *Adapter) Invoke(ctx context.Context, messages []router.Message, catalog *tools.Catalog, _ string) router.InferenceResult {
	contents := router.UserContents(messages)
	log := a.logger.With(zap.String("provider", a.provider.Name()))

	start := a.now()
	var calls []tools.FunctionCall
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		calls, err = a.provider.Generate(ctx, contents, catalog)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		log.Info("CLOUD_RETRY", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	elapsed := float64(a.now().Sub(start)) / float64(time.Millisecond)

	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			// the missing key is reported once at startup
			log.Debug("CLOUD_NOT_CONFIGURED")
		} else {
			log.Warn("CLOUD_FAILED", zap.Error(err))
		}
		res := router.Degraded()
		res.ElapsedMs = elapsed
		return res
	}

	if calls == nil {
		calls = []tools.FunctionCall{}
	}
	return router.InferenceResult{FunctionCalls: calls, ElapsedMs: elapsed}
}
