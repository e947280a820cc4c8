// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// REPAIR RULES
// =============================================================================

func TestRepairRule_LeadingZeros(t *testing.T) {
	rule, ok := RuleByName("leading-zeros")
	require.True(t, ok)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"after colon", `{"minute":05}`, `{"minute":5}`},
		{"after space", `{"minute": 00}`, `{"minute": 0}`},
		{"in array", `[07,08]`, `[7,8]`},
		{"many zeros", `{"h": 0007}`, `{"h": 7}`},
		{"plain zero untouched", `{"minute": 0}`, `{"minute": 0}`},
		{"decimal untouched", `{"x": 0.5}`, `{"x": 0.5}`},
		{"inside word untouched", `{"id":"a007"}`, `{"id":"a007"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Apply(tt.in))
		})
	}
}

func TestRepairRule_QuotedBooleans(t *testing.T) {
	rule, ok := RuleByName("quoted-booleans")
	require.True(t, ok)

	tests := []struct {
		in   string
		want string
	}{
		{`{"on":"true"}`, `{"on":true}`},
		{`{"on":"FALSE"}`, `{"on":false}`},
		{`{"on":"True"}`, `{"on":true}`},
		{`{"msg":"true story"}`, `{"msg":"true story"}`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Apply(tt.in))
		})
	}
}

func TestRepair(t *testing.T) {
	out, changed := Repair(`{"function_calls":[{"name":"set_alarm","arguments":{"hour":07,"minute":00,"repeat":"TRUE"}}]}`)
	assert.True(t, changed)
	assert.Equal(t, `{"function_calls":[{"name":"set_alarm","arguments":{"hour":7,"minute":0,"repeat":true}}]}`, out)

	clean := `{"function_calls":[]}`
	out, changed = Repair(clean)
	assert.False(t, changed)
	assert.Equal(t, clean, out)
}

func TestRepairRules_Order(t *testing.T) {
	names := make([]string, len(RepairRules))
	for i, r := range RepairRules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"leading-zeros", "quoted-booleans"}, names)

	_, ok := RuleByName("missing")
	assert.False(t, ok)
}

// =============================================================================
// ENVELOPE
// =============================================================================

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope(`{"function_calls":[{"name":"set_timer","arguments":{"minutes":7}}],"total_time_ms":42.5,"confidence":0.9,"cloud_handoff":true}`)
	require.NoError(t, err)

	require.Len(t, env.FunctionCalls, 1)
	assert.Equal(t, "set_timer", env.FunctionCalls[0].Name)
	assert.Equal(t, 7.0, env.FunctionCalls[0].Arguments["minutes"])
	assert.Equal(t, 42.5, env.TotalTimeMs)
	assert.Equal(t, 0.9, env.Confidence)
	assert.True(t, env.CloudHandoff)
}

func TestParseEnvelope_MissingFields(t *testing.T) {
	env, err := ParseEnvelope(`{}`)
	require.NoError(t, err)
	assert.NotNil(t, env.FunctionCalls)
	assert.Empty(t, env.FunctionCalls)
	assert.Zero(t, env.TotalTimeMs)
	assert.Zero(t, env.Confidence)
	assert.False(t, env.CloudHandoff)
}

func TestParseEnvelope_Clamps(t *testing.T) {
	env, err := ParseEnvelope(`{"total_time_ms":-3,"confidence":1.7}`)
	require.NoError(t, err)
	assert.Zero(t, env.TotalTimeMs)
	assert.Equal(t, 1.0, env.Confidence)
}

func TestParseEnvelope_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "I'd call set_alarm", `{"function_calls":`, `[1,2]`} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseEnvelope(in)
			assert.Error(t, err)
		})
	}
}

func TestEnvelope_String(t *testing.T) {
	assert.Equal(t, `{"function_calls":[],"total_time_ms":0,"confidence":0,"cloud_handoff":false}`, Envelope{}.String())
}

func TestNormalizeBooleans(t *testing.T) {
	calls := []tools.FunctionCall{
		{Name: "set_alarm", Arguments: map[string]any{
			"hour":    float64(7),
			"vibrate": "TRUE",
			"label":   "007",
			"extra":   map[string]any{"snooze": "false", "days": []any{"Mon", "true"}},
		}},
		{Name: "get_current_location", Arguments: nil},
	}

	require.True(t, NormalizeBooleans(calls))
	args := calls[0].Arguments
	assert.Equal(t, true, args["vibrate"])
	assert.Equal(t, "007", args["label"])
	assert.Equal(t, float64(7), args["hour"])
	assert.Equal(t, map[string]any{"snooze": false, "days": []any{"Mon", true}}, args["extra"])

	assert.False(t, NormalizeBooleans([]tools.FunctionCall{
		{Name: "send_message", Arguments: map[string]any{"message": "the code is 007"}},
	}))
}
