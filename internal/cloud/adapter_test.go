// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// FAKE PROVIDER
// =============================================================================

type fakeProvider struct {
	mu       sync.Mutex
	errs     []error
	calls    []tools.FunctionCall
	contents [][]string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(_ context.Context, contents []string, _ *tools.Catalog) ([]tools.FunctionCall, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contents = append(p.contents, contents)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return p.calls, nil
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func conversation() []router.Message {
	return []router.Message{
		{Role: router.RoleUser, Content: "Text Dave saying I'll be late"},
		{Role: router.RoleAssistant, Content: "Sure."},
		{Role: router.RoleDeveloper, Content: "be brief"},
		{Role: router.RoleUser, Content: "and check the weather"},
	}
}

// =============================================================================
// ADAPTER TESTS
// =============================================================================

func TestAdapter_Invoke(t *testing.T) {
	p := &fakeProvider{calls: []tools.FunctionCall{
		{Name: "send_message", Arguments: map[string]any{"recipient": "Dave", "message": "I'll be late"}},
		{Name: "get_weather", Arguments: map[string]any{"location": "here"}},
	}}
	a := NewAdapter(p)
	a.now = stepClock(850 * time.Millisecond)

	res := a.Invoke(context.Background(), conversation(), tools.Builtin(), "ignored")

	assert.Equal(t, [][]string{{"Text Dave saying I'll be late", "and check the weather"}}, p.contents)
	assert.Len(t, res.FunctionCalls, 2)
	assert.Equal(t, 850.0, res.ElapsedMs)
	assert.Zero(t, res.Confidence)
}

func TestAdapter_RetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{
		errs:  []error{fmt.Errorf("%w: busy", ErrRateLimited), &ProviderError{Status: 503}},
		calls: []tools.FunctionCall{{Name: "set_timer", Arguments: map[string]any{"minutes": 7.0}}},
	}
	a := NewAdapter(p, WithRetryPolicy(fastPolicy(3)))

	res := a.Invoke(context.Background(), conversation(), tools.Builtin(), "")

	assert.Len(t, p.contents, 3)
	require.Len(t, res.FunctionCalls, 1)
	assert.Equal(t, "set_timer", res.FunctionCalls[0].Name)
}

func TestAdapter_Degrades(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not configured", ErrNotConfigured, 1},
		{"auth", fmt.Errorf("%w: bad key", ErrAuthFailed), 1},
		{"exhausted", &ProviderError{Status: 500}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{errs: []error{tt.err, tt.err, tt.err}}
			a := NewAdapter(p, WithRetryPolicy(fastPolicy(2)))
			a.now = stepClock(40 * time.Millisecond)

			res := a.Invoke(context.Background(), conversation(), tools.Builtin(), "")

			assert.NotNil(t, res.FunctionCalls)
			assert.Empty(t, res.FunctionCalls)
			assert.Zero(t, res.Confidence)
			assert.Equal(t, 40.0, res.ElapsedMs)
			assert.Len(t, p.contents, tt.want)
		})
	}
}

func TestAdapter_Unavailable(t *testing.T) {
	a := NewAdapter(Unavailable(ProviderGemini, ErrNotConfigured))
	res := a.Invoke(context.Background(), conversation(), tools.Builtin(), "")

	assert.Empty(t, res.FunctionCalls)
	assert.Equal(t, ProviderGemini, a.Provider().Name())
}

func TestAdapter_NotConfiguredLogsBelowInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := NewAdapter(Unavailable(ProviderGemini, ErrNotConfigured), WithLogger(zap.New(core)))

	for range 3 {
		a.Invoke(context.Background(), conversation(), tools.Builtin(), "")
	}
	assert.Zero(t, logs.Len())

	p := &fakeProvider{errs: []error{ErrAuthFailed}}
	a = NewAdapter(p, WithLogger(zap.New(core)), WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))
	a.Invoke(context.Background(), conversation(), tools.Builtin(), "")
	require.Equal(t, 1, logs.FilterMessage("CLOUD_FAILED").Len())
}

func TestAdapter_RateLimit(t *testing.T) {
	p := &fakeProvider{}
	a := NewAdapter(p, WithRateLimit(1000, 1))

	for i := 0; i < 3; i++ {
		a.Invoke(context.Background(), conversation(), tools.Builtin(), "")
	}
	assert.Len(t, p.contents, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewAdapter(p, WithRateLimit(0.001, 1))
	slow.Invoke(context.Background(), conversation(), tools.Builtin(), "")
	res := slow.Invoke(ctx, conversation(), tools.Builtin(), "")
	assert.Empty(t, res.FunctionCalls)
	assert.Len(t, p.contents, 4)
}

func TestAdapter_NilCallsBecomeEmpty(t *testing.T) {
	res := NewAdapter(&fakeProvider{}).Invoke(context.Background(), conversation(), nil, "")
	assert.NotNil(t, res.FunctionCalls)
	assert.Empty(t, res.FunctionCalls)
}
