// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"context"

	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// Completion defaults for the on-device model.
const (
	DefaultMaxTokens = 256
	EndOfTurn        = "<end_of_turn>"
)

// Engine produces raw envelope text for a completion request.
type Engine interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// StructuredEngine is implemented by engines whose backend already returns
// decoded tool calls. Their output skips text repair.
type StructuredEngine interface {
	Engine
	CompleteEnvelope(ctx context.Context, c Completion) (Envelope, error)
}

// HealthChecker is implemented by engines that can report readiness.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// =============================================================================
// ADAPTER
// =============================================================================

// Adapter is the on-device router.InferenceAdapter. It never returns an
// error: engine failures and unparseable output become router.Degraded().
type Adapter struct {
	engine    Engine
	logger    *zap.Logger
	maxTokens int
	threshold float64
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

// WithMaxTokens overrides the generation limit.
func WithMaxTokens(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithConfidenceThreshold sets the threshold sent when the request context
// carries none.
func WithConfidenceThreshold(v float64) Option {
	return func(a *Adapter) { a.threshold = v }
}

// NewAdapter wraps an engine.
func NewAdapter(engine Engine, opts ...Option) *Adapter {
	a := &Adapter{
		engine:    engine,
		logger:    zap.NewNop(),
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Engine returns the wrapped engine.
func (a *Adapter) Engine() Engine {
	return a.engine
}

// Invoke implements router.InferenceAdapter.
func (a *Adapter) Invoke(ctx context.Context, messages []router.Message, catalog *tools.Catalog, systemPrompt string) router.InferenceResult {
	req := a.completion(ctx, messages, catalog, systemPrompt)

	if se, ok := a.engine.(StructuredEngine); ok {
		env, err := se.CompleteEnvelope(ctx, req)
		if err != nil {
			a.logger.Warn("LOCAL_ENGINE_FAILED", zap.Error(err))
			return router.Degraded()
		}
		changed := NormalizeBooleans(env.FunctionCalls)
		if changed {
			a.logger.Debug("LOCAL_ARGUMENTS_REPAIRED")
		}
		return inferenceResult(env, changed)
	}

	raw, err := a.engine.Complete(ctx, req)
	if err != nil {
		a.logger.Warn("LOCAL_ENGINE_FAILED", zap.Error(err))
		return router.Degraded()
	}

	repaired, changed := Repair(raw)
	if changed {
		a.logger.Debug("LOCAL_OUTPUT_REPAIRED", zap.String("raw", raw))
	}

	env, err := ParseEnvelope(repaired)
	if err != nil {
		a.logger.Warn("LOCAL_PARSE_FAILED", zap.Error(err), zap.Int("bytes", len(raw)))
		res := router.Degraded()
		res.RawMalformed = changed
		return res
	}
	return inferenceResult(env, changed)
}

func inferenceResult(env Envelope, repaired bool) router.InferenceResult {
	calls := env.FunctionCalls
	if calls == nil {
		calls = []tools.FunctionCall{}
	}
	elapsed := env.TotalTimeMs
	if elapsed < 0 {
		elapsed = 0
	}
	return router.InferenceResult{
		FunctionCalls: calls,
		ElapsedMs:     elapsed,
		Confidence:    clamp01(env.Confidence),
		RawMalformed:  repaired,
		CloudHandoff:  env.CloudHandoff,
	}
}

// completion builds the engine request: the system prompt goes first as a
// developer message, followed by the conversation unchanged.
func (a *Adapter) completion(ctx context.Context, messages []router.Message, catalog *tools.Catalog, systemPrompt string) Completion {
	if systemPrompt == "" {
		systemPrompt = router.DefaultSystemPrompt
	}

	msgs := make([]CompletionMessage, 0, len(messages)+1)
	msgs = append(msgs, CompletionMessage{Role: string(router.RoleDeveloper), Content: systemPrompt})
	for _, m := range messages {
		msgs = append(msgs, CompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	specs := catalog.Specs()
	wrapped := make([]CompletionTool, len(specs))
	for i, s := range specs {
		wrapped[i] = CompletionTool{Function: s}
	}

	threshold := a.threshold
	if v, ok := router.ConfidenceThreshold(ctx); ok {
		threshold = v
	}

	return Completion{
		Messages:            msgs,
		Tools:               wrapped,
		ForceTools:          true,
		MaxTokens:           a.maxTokens,
		StopSequences:       []string{EndOfTurn},
		ConfidenceThreshold: threshold,
	}
}

// CheckHealth reports the engine's readiness when it supports a check.
func (a *Adapter) CheckHealth(ctx context.Context) error {
	if hc, ok := a.engine.(HealthChecker); ok {
		return hc.CheckHealth(ctx)
	}
	return nil
}
