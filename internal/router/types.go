// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// ============================================================================
// MESSAGES
// ============================================================================

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

// Valid reports whether r is one of the accepted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleDeveloper:
		return true
	default:
		return false
	}
}

// Message is one entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserText returns the content of the last user message, or "" if there is none.
func UserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// UserContents returns the content of every user message in order.
func UserContents(messages []Message) []string {
	var out []string
	for _, m := range messages {
		if m.Role == RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

// HasUserMessage reports whether at least one user message is present.
func HasUserMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// ============================================================================
// INFERENCE
// ============================================================================

// InferenceResult is the raw output of one adapter invocation, before validation.
type InferenceResult struct {
	FunctionCalls []tools.FunctionCall `json:"function_calls"`
	// ElapsedMs is the time the adapter reports for the call.
	ElapsedMs float64 `json:"total_time_ms"`
	// Confidence is the model's self-reported confidence, 0 when unknown.
	Confidence float64 `json:"confidence"`
	// RawMalformed is set when the adapter had to repair the model output.
	RawMalformed bool `json:"raw_malformed,omitempty"`
	// CloudHandoff is passed through from on-device runtimes that report it.
	CloudHandoff bool `json:"cloud_handoff,omitempty"`
}

// Degraded is the result adapters return when a call fails for any reason.
func Degraded() InferenceResult {
	return InferenceResult{FunctionCalls: []tools.FunctionCall{}}
}

// InferenceAdapter turns a conversation and a catalog into candidate calls.
//
// Invoke must not fail: timeouts, malformed output and missing credentials are
// all reported as a Degraded result. An empty systemPrompt means the adapter's
// default.
type InferenceAdapter interface {
	Invoke(ctx context.Context, messages []Message, catalog *tools.Catalog, systemPrompt string) InferenceResult
}

// InferenceAdapterFunc adapts a function to InferenceAdapter.
type InferenceAdapterFunc func(ctx context.Context, messages []Message, catalog *tools.Catalog, systemPrompt string) InferenceResult

// Invoke calls f.
func (f InferenceAdapterFunc) Invoke(ctx context.Context, messages []Message, catalog *tools.Catalog, systemPrompt string) InferenceResult {
	return f(ctx, messages, catalog, systemPrompt)
}

// ============================================================================
// VERDICT
// ============================================================================

// Verdict is the outcome of validating an InferenceResult.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

func (v Verdict) String() string {
	if v.Valid {
		return "valid"
	}
	return "invalid: " + v.Reason
}

// ============================================================================
// RESULT
// ============================================================================

// Source tags describing which path produced a Result.
const (
	SourceOnDevice      = "on-device"
	SourceOnDeviceRetry = "on-device (retry)"
	SourceCloudFallback = "cloud (postflight fallback)"
)

// SourceCloudPreflight returns the source tag for a direct cloud route.
func SourceCloudPreflight(score float64) string {
	return fmt.Sprintf("cloud (preflight score=%.2f)", score)
}

// IsCloudSource reports whether a source tag names a cloud path.
func IsCloudSource(source string) bool {
	return strings.HasPrefix(source, "cloud")
}

// Step records one state the controller passed through.
type Step struct {
	State      State    `json:"state"`
	ElapsedMs  float64  `json:"elapsed_ms,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Calls      int      `json:"calls"`
	Verdict    *Verdict `json:"verdict,omitempty"`
	Malformed  bool     `json:"malformed,omitempty"`
}

// Result is the final routing outcome returned to callers.
type Result struct {
	// FunctionCalls only contains calls to tools present in the catalog.
	FunctionCalls []tools.FunctionCall `json:"function_calls"`
	Source        string               `json:"source"`
	// Confidence is set for on-device results only.
	Confidence *float64 `json:"confidence,omitempty"`
	// LocalConfidence carries the rejected first local attempt on fallback.
	LocalConfidence *float64 `json:"local_confidence,omitempty"`
	TotalTimeMs     float64  `json:"total_time_ms"`
	Score           float64  `json:"score"`
	Trace           []Step   `json:"trace,omitempty"`
}

// Local reports whether the result came from the on-device model.
func (r Result) Local() bool {
	return !IsCloudSource(r.Source)
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %d call(s), %.2fms (score=%.2f)",
		r.Source, len(r.FunctionCalls), r.TotalTimeMs, r.Score)
}

func floatPtr(v float64) *float64 {
	return &v
}

// ============================================================================
// REQUEST OPTIONS
// ============================================================================

type confidenceKey struct{}

// WithConfidenceThreshold attaches a confidence threshold to ctx. The value is
// forwarded to the on-device runtime; routing decisions do not read it.
func WithConfidenceThreshold(ctx context.Context, threshold float64) context.Context {
	return context.WithValue(ctx, confidenceKey{}, threshold)
}

// ConfidenceThreshold returns the threshold attached by WithConfidenceThreshold.
func ConfidenceThreshold(ctx context.Context) (float64, bool) {
	v, ok := ctx.Value(confidenceKey{}).(float64)
	return v, ok
}
