// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the cloud inference adapter.
//
// The Adapter forwards user messages and the tool catalog to a Provider,
// retries rate-limit and 5xx failures with exponential backoff and reports
// the wall-clock time of the whole exchange. Provider failures never reach
// the caller: they are logged and turned into router.Degraded().
//
// # Key Types
//
//   - Adapter: router.InferenceAdapter with rate limiting and retries
//   - Provider: one hosted model API
//   - GeminiProvider: Google Gemini via generative-ai-go (default)
//   - OpenAIProvider: any OpenAI-compatible API via eino
//   - RetryPolicy: attempt count and backoff schedule
//
// # Usage
//
//	var provider cloud.Provider = cloud.Unavailable(cloud.ProviderGemini, cloud.ErrNotConfigured)
//	if g, err := cloud.NewGeminiProvider(ctx, cloud.GeminiConfig{APIKey: key}); err == nil {
//	    provider = g
//	}
//	adapter := cloud.NewAdapter(provider, cloud.WithRateLimit(2, 4))
//
// # Security
//
// API keys are never logged. Use KeyFingerprint to identify a key.
package cloud
