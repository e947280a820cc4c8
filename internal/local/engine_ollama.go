// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"context"
	"fmt"

	"github.com/jeranaias/fcrouter/internal/ollama"
	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// OLLAMA ENGINE
// =============================================================================

// OllamaEngine runs completions through a local Ollama server. Ollama decodes
// tool calls itself, so the engine is a StructuredEngine.
type OllamaEngine struct {
	client *ollama.Client
	model  string
}

// NewOllamaEngine creates an engine. An empty model uses the client default.
func NewOllamaEngine(client *ollama.Client, model string) *OllamaEngine {
	if client == nil {
		client = ollama.NewClient()
	}
	return &OllamaEngine{client: client, model: model}
}

// Model returns the model the engine requests.
func (e *OllamaEngine) Model() string {
	if e.model == "" {
		return e.client.GetDefaultModel()
	}
	return e.model
}

// Complete implements Engine by rendering the decoded reply as envelope text.
func (e *OllamaEngine) Complete(ctx context.Context, c Completion) (string, error) {
	env, err := e.CompleteEnvelope(ctx, c)
	if err != nil {
		return "", err
	}
	return env.String(), nil
}

// CompleteEnvelope implements StructuredEngine.
func (e *OllamaEngine) CompleteEnvelope(ctx context.Context, c Completion) (Envelope, error) {
	resp, err := e.client.Chat(ctx, e.chatRequest(c))
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		FunctionCalls: make([]tools.FunctionCall, 0, len(resp.Message.ToolCalls)),
		TotalTimeMs:   resp.TotalTimeMs(),
	}
	if !resp.Message.HasToolCalls() {
		return env, nil
	}
	for _, tc := range resp.Message.ToolCalls {
		env.FunctionCalls = append(env.FunctionCalls, tools.FunctionCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return env, nil
}

// CheckHealth implements HealthChecker. The server must be running and the
// model pulled.
func (e *OllamaEngine) CheckHealth(ctx context.Context) error {
	if err := e.client.CheckRunning(ctx); err != nil {
		return err
	}
	ok, err := e.client.ModelExists(ctx, e.Model())
	if err != nil {
		return err
	}
	if !ok {
		return &ollama.ClientError{
			Type:    ollama.ErrTypeModelNotFound,
			Message: fmt.Sprintf("model %q is not installed (ollama pull %s)", e.Model(), e.Model()),
		}
	}
	return nil
}

func (e *OllamaEngine) chatRequest(c Completion) *ollama.ChatRequest {
	msgs := make([]ollama.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		switch m.Role {
		case string(router.RoleDeveloper):
			msgs = append(msgs, ollama.NewSystemMessage(m.Content))
		case string(router.RoleUser):
			msgs = append(msgs, ollama.NewUserMessage(m.Content))
		default:
			msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
		}
	}

	var toolDefs []ollama.Tool
	for _, spec := range c.ToolSpecs() {
		toolDefs = append(toolDefs, ollamaTool(spec))
	}

	return &ollama.ChatRequest{
		Model:    e.model,
		Messages: msgs,
		Tools:    toolDefs,
		Options: &ollama.Options{
			NumPredict: c.MaxTokens,
			Stop:       c.StopSequences,
		},
	}
}

func ollamaTool(spec tools.ToolSpec) ollama.Tool {
	props := make(map[string]ollama.ToolProperty, len(spec.Parameters.Params))
	for _, p := range spec.Parameters.Params {
		props[p.Name] = ollama.ToolProperty{Type: string(p.Type), Description: p.Description}
	}
	return ollama.Tool{
		Type: "function",
		Function: ollama.ToolSchema{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: ollama.ToolParameters{
				Type:       "object",
				Properties: props,
				Required:   spec.Parameters.RequiredNames(),
			},
		},
	}
}
