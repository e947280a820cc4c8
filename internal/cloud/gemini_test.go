// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fcrouter/internal/tools"
)

func TestNewGeminiProvider_NoKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiTools(t *testing.T) {
	catalog := tools.MustCatalog(
		tools.ToolSpec{
			Name:        "set_alarm",
			Description: "Set an alarm",
			Parameters: tools.ParamSchema{Params: []tools.Param{
				{Name: "hour", Type: tools.TypeInteger, Description: "Hour", Required: true},
				{Name: "label", Type: tools.TypeString},
			}},
		},
		tools.ToolSpec{
			Name: "tag",
			Parameters: tools.ParamSchema{Params: []tools.Param{
				{Name: "names", Type: tools.TypeArray, Required: true},
				{Name: "ratio", Type: tools.TypeNumber},
				{Name: "on", Type: tools.TypeBoolean},
			}},
		},
	)

	got := geminiTools(catalog)
	require.Len(t, got, 1)
	decls := got[0].FunctionDeclarations
	require.Len(t, decls, 2)

	alarm := decls[0]
	assert.Equal(t, "set_alarm", alarm.Name)
	assert.Equal(t, "Set an alarm", alarm.Description)
	assert.Equal(t, genai.TypeObject, alarm.Parameters.Type)
	assert.Equal(t, []string{"hour"}, alarm.Parameters.Required)
	assert.Equal(t, genai.TypeInteger, alarm.Parameters.Properties["hour"].Type)
	assert.Equal(t, "Hour", alarm.Parameters.Properties["hour"].Description)
	assert.Equal(t, genai.TypeString, alarm.Parameters.Properties["label"].Type)

	tag := decls[1].Parameters.Properties
	assert.Equal(t, genai.TypeArray, tag["names"].Type)
	require.NotNil(t, tag["names"].Items)
	assert.Equal(t, genai.TypeNumber, tag["ratio"].Type)
	assert.Equal(t, genai.TypeBoolean, tag["on"].Type)

	assert.Nil(t, geminiTools(nil))
}

func TestGeminiCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{
			genai.Text("Sure, "),
			genai.FunctionCall{Name: "send_message", Args: map[string]any{"recipient": "Dave"}},
		}}},
		nil,
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{
			genai.FunctionCall{Name: "get_weather"},
		}}},
	}}

	calls := geminiCalls(resp)
	require.Len(t, calls, 2)
	assert.Equal(t, "send_message", calls[0].Name)
	assert.Equal(t, "Dave", calls[0].Arguments["recipient"])
	assert.Equal(t, "get_weather", calls[1].Name)
	assert.NotNil(t, calls[1].Arguments)

	assert.Empty(t, geminiCalls(nil))
	assert.NotNil(t, geminiCalls(&genai.GenerateContentResponse{}))
}
