// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"

	"github.com/jeranaias/fcrouter/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OpenAIConfig configures an OpenAI-compatible provider such as OpenRouter.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIProvider calls an OpenAI-compatible chat completions API through an
// eino tool-calling chat model.
type OpenAIProvider struct {
	model model.ToolCallingChatModel
}

// NewOpenAIProvider creates the eino chat model for cfg. It returns
// ErrNotConfigured when no API key is given.
func NewOpenAIProvider(ctx context.Context, cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai provider: model is required")
	}

	mcfg := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.BaseURL != "" {
		mcfg.BaseURL = cfg.BaseURL
	}

	cm, err := openai.NewChatModel(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI chat model: %w", err)
	}
	return NewOpenAIProviderWithModel(cm), nil
}

// NewOpenAIProviderWithModel wraps an existing tool-calling chat model.
func NewOpenAIProviderWithModel(cm model.ToolCallingChatModel) *OpenAIProvider {
	return &OpenAIProvider{model: cm}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, contents []string, catalog *tools.Catalog) ([]tools.FunctionCall, error) {
	cm := p.model
	if infos := einoTools(catalog); len(infos) > 0 {
		bound, err := cm.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		cm = bound
	}

	msgs := make([]*schema.Message, len(contents))
	for i, c := range contents {
		msgs[i] = schema.UserMessage(c)
	}

	resp, err := cm.Generate(ctx, msgs)
	if err != nil {
		return nil, classifyError(ProviderOpenAI, err)
	}

	calls := []tools.FunctionCall{}
	if resp == nil {
		return calls, nil
	}
	for _, tc := range resp.ToolCalls {
		calls = append(calls, tools.FunctionCall{
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return calls, nil
}

// decodeArguments parses a tool call's JSON argument string. Unparseable
// arguments decode as an empty map so validation reports the missing params.
func decodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.UnmarshalFromString(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func einoTools(catalog *tools.Catalog) []*schema.ToolInfo {
	specs := catalog.Specs()
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		params := make(map[string]*schema.ParameterInfo, len(s.Parameters.Params))
		for _, p := range s.Parameters.Params {
			info := &schema.ParameterInfo{
				Type:     schema.DataType(p.Type),
				Desc:     p.Description,
				Required: p.Required,
			}
			if p.Type == tools.TypeArray {
				info.ElemInfo = &schema.ParameterInfo{Type: schema.String}
			}
			params[p.Name] = info
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        s.Name,
			Desc:        s.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}
