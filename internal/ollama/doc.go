// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements the small subset of the Ollama API the on-device
// engine needs: health checks, model listing, and non-streaming chat
// completions with tool calling.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role, content, and optional tool calls
//   - ChatRequest: Request structure for chat completions
//   - ChatResponse: Response structure with message and timing
//   - ClientError: Typed error with ErrorType for handling
//
// # Usage
//
// Create a client and send a chat request with tools:
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://127.0.0.1:11434",
//	    DefaultModel: "functiongemma",
//	})
//	resp, err := client.Chat(ctx, &ollama.ChatRequest{
//	    Messages: []ollama.Message{ollama.NewUserMessage("Set an alarm for 7")},
//	    Tools:    tools,
//	    Options:  &ollama.Options{NumPredict: 256},
//	})
//	if ollama.IsNotRunning(err) {
//	    // degrade
//	}
package ollama
