// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey string
	Model  string
	// Endpoint overrides the API host. Empty uses the public endpoint.
	Endpoint string
}

// GeminiProvider calls Gemini with function declarations built from the
// catalog.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini client. It returns ErrNotConfigured
// when no API key is given.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.Model}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return ProviderGemini }

// Model returns the model name requests are sent to.
func (p *GeminiProvider) Model() string { return p.model }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, contents []string, catalog *tools.Catalog) ([]tools.FunctionCall, error) {
	model := p.client.GenerativeModel(p.model)
	model.Tools = geminiTools(catalog)

	parts := make([]genai.Part, len(contents))
	for i, c := range contents {
		parts[i] = genai.Text(c)
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyError(ProviderGemini, err)
	}
	return geminiCalls(resp), nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

var geminiTypes = map[string]genai.Type{
	"STRING":  genai.TypeString,
	"INTEGER": genai.TypeInteger,
	"NUMBER":  genai.TypeNumber,
	"BOOLEAN": genai.TypeBoolean,
	"OBJECT":  genai.TypeObject,
	"ARRAY":   genai.TypeArray,
}

// geminiTools declares every catalog tool as one function of a single Tool.
func geminiTools(catalog *tools.Catalog) []*genai.Tool {
	specs := catalog.Specs()
	if len(specs) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		props := make(map[string]*genai.Schema, len(s.Parameters.Params))
		for _, p := range s.Parameters.Params {
			schema := &genai.Schema{Type: geminiTypes[p.Type.Upper()], Description: p.Description}
			if p.Type == tools.TypeArray {
				schema.Items = &genai.Schema{Type: genai.TypeString}
			}
			props[p.Name] = schema
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   s.Parameters.RequiredNames(),
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// geminiCalls collects function calls from every part of every candidate.
func geminiCalls(resp *genai.GenerateContentResponse) []tools.FunctionCall {
	calls := []tools.FunctionCall{}
	if resp == nil {
		return calls
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			fc, ok := part.(genai.FunctionCall)
			if !ok {
				continue
			}
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, tools.FunctionCall{Name: fc.Name, Arguments: args})
		}
	}
	return calls
}
