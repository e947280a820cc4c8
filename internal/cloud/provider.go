// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Provider asks a hosted model for function calls. contents are the user
// message texts in conversation order.
type Provider interface {
	Name() string
	Generate(ctx context.Context, contents []string, catalog *tools.Catalog) ([]tools.FunctionCall, error)
}

// Unavailable returns a Provider whose every call fails with err. It stands
// in for a provider that could not be constructed, typically because its API
// key is missing.
func Unavailable(name string, err error) Provider {
	return unavailable{name: name, err: err}
}

type unavailable struct {
	name string
	err  error
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Generate(context.Context, []string, *tools.Catalog) ([]tools.FunctionCall, error) {
	return nil, u.err
}

// KeyFingerprint identifies an API key in logs without revealing any of it.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
