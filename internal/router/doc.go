// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides whether a function-calling request is answered by the
// on-device model or the cloud model, and guarantees the returned calls are
// schema-valid before they reach the caller.
//
// Routes requests through three checkpoints:
// Preflight score -> Local attempt -> Local retry -> Cloud
//
// # Key Types
//
//   - Controller: Escalation state machine wiring the two adapters together
//   - InferenceAdapter: Backend contract implemented by local and cloud adapters
//   - Signals: Per-signal breakdown of the preflight complexity score
//   - Verdict: Outcome of post-call validation (valid flag + reason)
//   - Result: Final, provenance-tagged routing outcome
//
// # Checkpoints
//
// Preflight scores the last user message and the catalog without calling any
// model. A score of CloudThreshold or more goes straight to the cloud. Below it
// the local model is tried with DefaultSystemPrompt; an invalid answer is
// retried once with RetrySystemPrompt, and a second invalid answer falls back
// to the cloud. Checkpoints run strictly one after another.
//
// # Usage
//
//	ctrl := router.NewController(localAdapter, cloudAdapter,
//	    router.WithObserver(stats),
//	    router.WithLogger(logger))
//	result := ctrl.Route(ctx, messages, catalog)
//	fmt.Println(result.Source)
//
// Source is one of "on-device", "on-device (retry)",
// "cloud (preflight score=X.XX)" or "cloud (postflight fallback)".
package router
