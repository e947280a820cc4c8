// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// ============================================================================
// FAKE ADAPTERS
// ============================================================================

// scriptedAdapter returns its results in order and records every prompt.
type scriptedAdapter struct {
	mu      sync.Mutex
	results []InferenceResult
	prompts []string
}

func (a *scriptedAdapter) Invoke(_ context.Context, _ []Message, _ *tools.Catalog, systemPrompt string) InferenceResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, systemPrompt)
	if len(a.results) == 0 {
		return Degraded()
	}
	r := a.results[0]
	a.results = a.results[1:]
	return r
}

func (a *scriptedAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.prompts)
}

func userMessages(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// ============================================================================
// SCENARIOS
// ============================================================================

func TestRoute_LocalSuccess(t *testing.T) {
	local := &scriptedAdapter{results: []InferenceResult{{
		FunctionCalls: []tools.FunctionCall{call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0})},
		ElapsedMs:     120,
		Confidence:    0.93,
	}}}
	cloud := &scriptedAdapter{}

	res := NewController(local, cloud).Route(context.Background(), userMessages("Set an alarm for 10 AM."), alarmCatalog())

	assert.Equal(t, SourceOnDevice, res.Source)
	require.Len(t, res.FunctionCalls, 1)
	assert.Equal(t, "set_alarm", res.FunctionCalls[0].Name)
	assert.Equal(t, 10.0, res.FunctionCalls[0].Arguments["hour"])
	assert.Equal(t, 0.0, res.FunctionCalls[0].Arguments["minute"])
	assert.Equal(t, 120.0, res.TotalTimeMs)
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 0.93, *res.Confidence)
	assert.Nil(t, res.LocalConfidence)

	assert.Equal(t, []string{DefaultSystemPrompt}, local.prompts)
	assert.Equal(t, 0, cloud.calls())
	assert.True(t, res.Local())
}

func TestRoute_PreflightSkipsLocal(t *testing.T) {
	local := &scriptedAdapter{}
	cloud := &scriptedAdapter{results: []InferenceResult{{
		FunctionCalls: []tools.FunctionCall{
			call("send_message", map[string]any{"recipient": "Dave", "message": "I'll be late"}),
			call("get_weather", map[string]any{"location": "here"}),
		},
		ElapsedMs: 850,
	}}}
	catalog := tools.Builtin().Subset("send_message", "get_weather")

	res := NewController(local, cloud).Route(context.Background(),
		userMessages("Text Dave saying I'll be late and check the weather."), catalog)

	assert.True(t, strings.HasPrefix(res.Source, "cloud (preflight score="), res.Source)
	assert.Equal(t, "cloud (preflight score=0.58)", res.Source)
	assert.Equal(t, 0, local.calls())
	assert.Equal(t, 1, cloud.calls())
	assert.Len(t, res.FunctionCalls, 2)
	assert.Equal(t, 850.0, res.TotalTimeMs)
	assert.Nil(t, res.Confidence)
	assert.Nil(t, res.LocalConfidence)
	assert.False(t, res.Local())
}

func TestRoute_RetrySucceeds(t *testing.T) {
	local := &scriptedAdapter{results: []InferenceResult{
		{
			FunctionCalls: []tools.FunctionCall{call("set_alarm", map[string]any{"hour": 10.0})},
			ElapsedMs:     100,
			Confidence:    0.4,
		},
		{
			FunctionCalls: []tools.FunctionCall{call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0})},
			ElapsedMs:     150,
			Confidence:    0.8,
		},
	}}
	cloud := &scriptedAdapter{}

	res := NewController(local, cloud).Route(context.Background(), userMessages("Set an alarm for 10 AM."), alarmCatalog())

	assert.Equal(t, SourceOnDeviceRetry, res.Source)
	assert.Equal(t, 250.0, res.TotalTimeMs)
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 0.8, *res.Confidence)
	assert.Equal(t, []string{DefaultSystemPrompt, RetrySystemPrompt}, local.prompts)
	assert.Equal(t, 0, cloud.calls())

	require.Len(t, res.Trace, 3)
	assert.Equal(t, StateLocalAttempt, res.Trace[1].State)
	assert.Equal(t, "missing required param 'minute' in set_alarm", res.Trace[1].Verdict.Reason)
	assert.True(t, res.Trace[2].Verdict.Valid)
}

func TestRoute_CloudFallback(t *testing.T) {
	local := &scriptedAdapter{results: []InferenceResult{
		{FunctionCalls: []tools.FunctionCall{call("launch_rocket", nil)}, ElapsedMs: 90, Confidence: 0.31},
		{ElapsedMs: 110, Confidence: 0.2},
	}}
	cloud := &scriptedAdapter{results: []InferenceResult{{
		FunctionCalls: []tools.FunctionCall{
			call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0}),
			call("launch_rocket", nil),
		},
		ElapsedMs: 700,
	}}}

	res := NewController(local, cloud).Route(context.Background(), userMessages("Set an alarm for 10 AM."), alarmCatalog())

	assert.Equal(t, SourceCloudFallback, res.Source)
	assert.Equal(t, 900.0, res.TotalTimeMs)
	require.NotNil(t, res.LocalConfidence)
	assert.Equal(t, 0.31, *res.LocalConfidence)
	assert.Nil(t, res.Confidence)
	// unknown names are filtered out of the cloud answer
	require.Len(t, res.FunctionCalls, 1)
	assert.Equal(t, "set_alarm", res.FunctionCalls[0].Name)
	assert.Equal(t, 2, local.calls())
	assert.Equal(t, 1, cloud.calls())
}

func TestRoute_EverythingFails(t *testing.T) {
	local := &scriptedAdapter{}
	cloud := &scriptedAdapter{}

	res := NewController(local, cloud).Route(context.Background(), userMessages("Set an alarm for 10 AM."), alarmCatalog())

	assert.Equal(t, SourceCloudFallback, res.Source)
	assert.Empty(t, res.FunctionCalls)
	assert.NotNil(t, res.FunctionCalls)
	require.NotNil(t, res.LocalConfidence)
	assert.Equal(t, 0.0, *res.LocalConfidence)
}

func TestRoute_UsesLastUserMessage(t *testing.T) {
	local := &scriptedAdapter{}
	cloud := &scriptedAdapter{}
	messages := []Message{
		{Role: RoleUser, Content: "Text Dave and check the weather and set an alarm"},
		{Role: RoleAssistant, Content: "Done."},
		{Role: RoleUser, Content: "Set an alarm for 10 AM."},
	}

	res := NewController(local, cloud).Route(context.Background(), messages, alarmCatalog())
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, 2, local.calls())
}

func TestRoute_ObserverSeesDecision(t *testing.T) {
	local := &scriptedAdapter{results: []InferenceResult{{
		FunctionCalls: []tools.FunctionCall{call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0})},
	}}}
	var got []Decision
	obs := ObserverFunc(func(_ context.Context, d Decision) { got = append(got, d) })

	ctrl := NewController(local, &scriptedAdapter{}, WithObserver(Observers{obs, nil}))
	res := ctrl.Route(context.Background(), userMessages("Set an alarm for 10 AM."), alarmCatalog())

	require.Len(t, got, 1)
	assert.Equal(t, "Set an alarm for 10 AM.", got[0].UserText)
	assert.Equal(t, res.Source, got[0].Result.Source)
	assert.Equal(t, []string{"set"}, got[0].Signals.Verbs)
}

func TestRoute_ConcurrentCallsShareController(t *testing.T) {
	adapter := InferenceAdapterFunc(func(_ context.Context, msgs []Message, _ *tools.Catalog, _ string) InferenceResult {
		return InferenceResult{
			FunctionCalls: []tools.FunctionCall{call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0})},
			ElapsedMs:     float64(len(UserText(msgs))),
		}
	})
	ctrl := NewController(adapter, adapter)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := ctrl.Route(context.Background(), userMessages("Set an alarm for 10 AM."), alarmCatalog())
			assert.Equal(t, SourceOnDevice, res.Source)
			assert.Equal(t, 23.0, res.TotalTimeMs)
		}()
	}
	wg.Wait()
}

func TestConfidenceThreshold_Context(t *testing.T) {
	_, ok := ConfidenceThreshold(context.Background())
	assert.False(t, ok)

	ctx := WithConfidenceThreshold(context.Background(), 0.99)
	v, ok := ConfidenceThreshold(ctx)
	assert.True(t, ok)
	assert.Equal(t, 0.99, v)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "cloud_fallback", StateCloudFallback.String())
	text, err := StateLocalRetry.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "local_retry", string(text))

	var back State
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, StateLocalRetry, back)
	assert.Error(t, back.UnmarshalText([]byte("sideways")))
}

// ============================================================================
// LOCATION INTENT
// ============================================================================

func TestDetectLocationIntent(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"what is my current location", true},
		{"where am I", true},
		{"what is my address", true},
		{"tell Sarah where I am", true},
		{"Where's my current position?", true},
		{"get directions to Golden Gate", false},
		{"play Bohemian Rhapsody", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLocationIntent(tt.text))
		})
	}
}
