// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/fcrouter/internal/tools"
)

func call(name string, args map[string]any) tools.FunctionCall {
	return tools.FunctionCall{Name: name, Arguments: args}
}

func result(calls ...tools.FunctionCall) InferenceResult {
	return InferenceResult{FunctionCalls: calls}
}

func TestValidate_Rules(t *testing.T) {
	catalog := tools.Builtin()

	tests := []struct {
		name   string
		text   string
		result InferenceResult
		want   Verdict
	}{
		{
			name:   "no calls",
			text:   "set an alarm",
			result: result(),
			want:   Verdict{Reason: "no function calls returned"},
		},
		{
			name:   "unknown tool",
			text:   "launch",
			result: result(call("launch_rocket", nil)),
			want:   Verdict{Reason: "hallucinated tool name: launch_rocket"},
		},
		{
			name:   "missing required",
			text:   "Set an alarm for 10 AM.",
			result: result(call("set_alarm", map[string]any{"hour": 10.0})),
			want:   Verdict{Reason: "missing required param 'minute' in set_alarm"},
		},
		{
			name:   "valid alarm",
			text:   "Set an alarm for 10 AM.",
			result: result(call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0})),
			want:   Verdict{Valid: true, Reason: "ok"},
		},
		{
			name:   "integer as numeric string",
			text:   "Set a timer for 7 minutes",
			result: result(call("set_timer", map[string]any{"minutes": "7"})),
			want:   Verdict{Valid: true, Reason: "ok"},
		},
		{
			name:   "integer as word",
			text:   "Set a timer for seven minutes",
			result: result(call("set_timer", map[string]any{"minutes": "seven"})),
			want:   Verdict{Reason: "param 'minutes' not coercible to int"},
		},
		{
			name:   "integer as fraction",
			text:   "Set a timer for 7.5 minutes",
			result: result(call("set_timer", map[string]any{"minutes": 7.5})),
			want:   Verdict{Reason: "param 'minutes' not coercible to int"},
		},
		{
			name:   "integer as bool",
			text:   "Set a timer",
			result: result(call("set_timer", map[string]any{"minutes": true})),
			want:   Verdict{Reason: "param 'minutes' not coercible to int"},
		},
		{
			name:   "hallucinated string",
			text:   "Play some music",
			result: result(call("play_music", map[string]any{"song": "Bohemian Rhapsody"})),
			want:   Verdict{Reason: "hallucinated string not in prompt: Bohemian Rhapsody"},
		},
		{
			name:   "case-insensitive substring",
			text:   "Play BOHEMIAN RHAPSODY by Queen!",
			result: result(call("play_music", map[string]any{"song": "bohemian rhapsody"})),
			want:   Verdict{Valid: true, Reason: "ok"},
		},
		{
			name:   "partial word overlap",
			text:   "Remind me about the meeting at 3:00 PM",
			result: result(call("create_reminder", map[string]any{"title": "Team meeting", "time": "3:00 PM"})),
			want:   Verdict{Valid: true, Reason: "ok"},
		},
		{
			name:   "required string empty",
			text:   "Text Dave",
			result: result(call("send_message", map[string]any{"recipient": "Dave", "message": "   "})),
			want:   Verdict{Reason: "required string param 'message' is empty"},
		},
		{
			name: "optional string empty",
			text: "Directions from home to work",
			result: result(call("get_directions", map[string]any{
				"origin": "home", "destination": "work", "mode": "",
			})),
			want: Verdict{Valid: true, Reason: "ok"},
		},
		{
			name: "undeclared argument ignored",
			text: "Set a timer for 5 minutes",
			result: result(call("set_timer", map[string]any{
				"minutes": 5.0, "label": "completely invented",
			})),
			want: Verdict{Valid: true, Reason: "ok"},
		},
		{
			name:   "punctuation only value",
			text:   "Text Dave",
			result: result(call("send_message", map[string]any{"recipient": "Dave", "message": "?!"})),
			want:   Verdict{Valid: true, Reason: "ok"},
		},
		{
			name: "one bad call rejects all",
			text: "Set an alarm for 10 AM and play jazz",
			result: result(
				call("set_alarm", map[string]any{"hour": 10.0, "minute": 0.0}),
				call("play_music", map[string]any{"song": "opera"}),
			),
			want: Verdict{Reason: "hallucinated string not in prompt: opera"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.result, catalog, tt.text))
		})
	}
}

func TestValidate_NumberParam(t *testing.T) {
	catalog := tools.MustCatalog(tools.ToolSpec{
		Name: "set_temp",
		Parameters: tools.ParamSchema{Params: []tools.Param{
			{Name: "degrees", Type: tools.TypeNumber, Required: true},
		}},
	})

	for _, v := range []any{21.5, 21, "21.5", " 21 ", json.Number("3e2")} {
		got := Validate(result(call("set_temp", map[string]any{"degrees": v})), catalog, "")
		assert.True(t, got.Valid, "%#v: %s", v, got.Reason)
	}
	for _, v := range []any{"warm", nil, []any{1.0}} {
		got := Validate(result(call("set_temp", map[string]any{"degrees": v})), catalog, "")
		assert.Equal(t, "param 'degrees' not coercible to number", got.Reason, "%#v", v)
	}
}

func TestValidate_NumericStringGrounding(t *testing.T) {
	catalog := tools.MustCatalog(tools.ToolSpec{
		Name: "call_number",
		Parameters: tools.ParamSchema{Params: []tools.Param{
			{Name: "number", Type: tools.TypeString, Required: true},
		}},
	})
	// a number argument for a string param is checked as its text form
	ok := Validate(result(call("call_number", map[string]any{"number": 5551234.0})), catalog, "call 5551234")
	assert.True(t, ok.Valid, ok.Reason)

	bad := Validate(result(call("call_number", map[string]any{"number": 42.0})), catalog, "call mom")
	assert.Equal(t, "hallucinated string not in prompt: 42", bad.Reason)
}

func TestValidate_UnicodeNormalization(t *testing.T) {
	catalog := tools.Builtin()
	// "café" precomposed in text, decomposed in the argument
	text := "Find a caf\u00e9 near Zürich"
	res := result(call("find_nearby", map[string]any{
		"category": "cafe\u0301",
		"location": "Zürich",
	}))
	assert.True(t, Validate(res, catalog, text).Valid)
}

func TestValidate_NilCatalog(t *testing.T) {
	got := Validate(result(call("set_alarm", nil)), nil, "set alarm")
	assert.Equal(t, "hallucinated tool name: set_alarm", got.Reason)
}
