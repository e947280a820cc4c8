// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != "user" {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}

	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are a helpful assistant")

	if msg.Role != "system" {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
}

func TestMessage_HasToolCalls(t *testing.T) {
	msg := NewUserMessage("Response")
	if msg.HasToolCalls() {
		t.Error("HasToolCalls should be false without tool calls")
	}

	msg.ToolCalls = []ToolCall{{Function: ToolFunction{Name: "test"}}}
	if !msg.HasToolCalls() {
		t.Error("HasToolCalls should be true with tool calls")
	}
}

// =============================================================================
// RESPONSE TESTS
// =============================================================================

func TestChatResponse_TotalTime(t *testing.T) {
	resp := &ChatResponse{TotalDuration: int64(1500 * time.Millisecond)}

	if resp.TotalTimeMs() != 1500 {
		t.Errorf("TotalTimeMs() = %v, want 1500", resp.TotalTimeMs())
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{300 * 1024 * 1024, "300.0 MB"},
		{3 * 1024 * 1024 * 1024 / 2, "1.5 GB"},
	}
	for _, tc := range tests {
		m := &ModelInfo{Size: tc.size}
		if got := m.FormatSize(); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestNewClientWithConfig_FillsDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})
	cfg := c.config

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if c.GetDefaultModel() != DefaultModel {
		t.Errorf("DefaultModel = %q", c.GetDefaultModel())
	}
}

func TestClient_Chat(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{
			"model": "functiongemma",
			"message": {"role": "assistant", "content": "",
				"tool_calls": [{"function": {"name": "set_timer", "arguments": {"minutes": 7}}}]},
			"done": true,
			"total_duration": 250000000
		}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	resp, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("sys"), NewUserMessage("timer for 7 minutes")},
		Options:  &Options{NumPredict: 256, Stop: []string{"<end_of_turn>"}},
		Tools: []Tool{{Type: "function", Function: ToolSchema{
			Name: "set_timer",
			Parameters: ToolParameters{Type: "object", Properties: map[string]ToolProperty{
				"minutes": {Type: "integer"},
			}, Required: []string{"minutes"}},
		}}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got.Model != DefaultModel {
		t.Errorf("request model = %q, want default", got.Model)
	}
	if got.Stream {
		t.Error("request must not stream")
	}
	if got.Options == nil || got.Options.NumPredict != 256 {
		t.Errorf("options not forwarded: %+v", got.Options)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "set_timer" {
		t.Errorf("tools not forwarded: %+v", got.Tools)
	}

	if !resp.Message.HasToolCalls() {
		t.Fatal("expected tool calls in response")
	}
	if resp.Message.ToolCalls[0].Function.Arguments["minutes"] != 7.0 {
		t.Errorf("arguments = %v", resp.Message.ToolCalls[0].Function.Arguments)
	}
	if resp.TotalTimeMs() != 250 {
		t.Errorf("TotalTimeMs() = %v", resp.TotalTimeMs())
	}
}

func TestClient_Chat_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), &ChatRequest{})
	if !IsModelNotFound(err) {
		t.Errorf("err = %v, want model not found", err)
	}
}

func TestClient_Chat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), &ChatRequest{})

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("err = %T, want *ClientError", err)
	}
	if clientErr.Message != "out of memory" {
		t.Errorf("Message = %q", clientErr.Message)
	}
}

func TestClient_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	if err := c.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("CheckRunning() = %v, want not running", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, &ChatRequest{})
	if !IsTimeout(err) {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"functiongemma:latest","size":300000000}]}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 || models[0].Name != "functiongemma:latest" {
		t.Errorf("models = %+v", models)
	}
}

func TestClient_ModelExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"models":[{"name":"functiongemma:latest"},{"name":"gemma3:270m"}]}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	tests := []struct {
		model string
		want  bool
	}{
		{"functiongemma", true},
		{"functiongemma:latest", true},
		{"gemma3:270m", true},
		{"gemma3", false},
		{"llama3", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := c.ModelExists(context.Background(), tt.model)
			if err != nil {
				t.Fatalf("ModelExists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ModelExists(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestClientError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ClientError{Type: ErrTypeConnection, Message: "failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("ClientError should unwrap to its cause")
	}
	if err.Error() != "failed: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
