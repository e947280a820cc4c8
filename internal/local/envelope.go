// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/jeranaias/fcrouter/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyOutput is returned by ParseEnvelope for blank engine output.
var ErrEmptyOutput = errors.New("empty model output")

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is the JSON document on-device runtimes answer with:
//
//	{"function_calls": [...], "total_time_ms": n, "confidence": n, "cloud_handoff": b}
//
// Missing fields take their zero value.
type Envelope struct {
	FunctionCalls []tools.FunctionCall `json:"function_calls"`
	TotalTimeMs   float64              `json:"total_time_ms"`
	Confidence    float64              `json:"confidence"`
	CloudHandoff  bool                 `json:"cloud_handoff"`
}

// ParseEnvelope decodes engine output. Repair is not applied here.
func ParseEnvelope(text string) (Envelope, error) {
	var env Envelope
	if strings.TrimSpace(text) == "" {
		return env, ErrEmptyOutput
	}
	if err := json.UnmarshalFromString(text, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if env.FunctionCalls == nil {
		env.FunctionCalls = []tools.FunctionCall{}
	}
	if env.TotalTimeMs < 0 {
		env.TotalTimeMs = 0
	}
	env.Confidence = clamp01(env.Confidence)
	return env, nil
}

// String encodes the envelope as engine output.
func (e Envelope) String() string {
	if e.FunctionCalls == nil {
		e.FunctionCalls = []tools.FunctionCall{}
	}
	s, err := json.MarshalToString(e)
	if err != nil {
		return ""
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// =============================================================================
// COMPLETION REQUEST
// =============================================================================

// CompletionMessage is a message as sent to the on-device runtime.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionTool wraps a tool the way on-device runtimes expect it.
type CompletionTool struct {
	Function tools.ToolSpec `json:"function"`
}

// Completion is one request to an Engine.
type Completion struct {
	Messages            []CompletionMessage `json:"messages"`
	Tools               []CompletionTool    `json:"tools"`
	ForceTools          bool                `json:"force_tools"`
	MaxTokens           int                 `json:"max_tokens"`
	StopSequences       []string            `json:"stop_sequences"`
	ConfidenceThreshold float64             `json:"confidence_threshold"`
}

// ToolSpecs returns the unwrapped tools of the completion.
func (c Completion) ToolSpecs() []tools.ToolSpec {
	specs := make([]tools.ToolSpec, len(c.Tools))
	for i, t := range c.Tools {
		specs[i] = t.Function
	}
	return specs
}
