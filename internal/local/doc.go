// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package local implements the on-device inference adapter.
//
// The Adapter builds a completion request (developer prompt first, tools
// wrapped as {"function": spec}, forced tool use, 256 tokens, stop at
// <end_of_turn>), hands it to an Engine and turns the returned text into a
// router.InferenceResult. Raw text is cleaned by the ordered RepairRules
// before it is parsed as an Envelope. A StructuredEngine returns decoded
// calls instead; only quoted booleans in its arguments are normalized.
//
// # Engines
//
//   - OllamaEngine: a local Ollama server via package ollama (structured)
//   - BridgeEngine: an HTTP bridge in front of an on-device runtime
//
// # Usage
//
//	engine := local.NewOllamaEngine(ollama.NewClient(), "functiongemma")
//	adapter := local.NewAdapter(engine, local.WithLogger(logger))
//	res := adapter.Invoke(ctx, messages, catalog, "")
package local
