// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/jeranaias/fcrouter/internal/util"
)

// DefaultBridgeTimeout bounds one bridge completion.
const DefaultBridgeTimeout = 30 * time.Second

// BridgeError is a non-2xx answer from the runtime bridge.
type BridgeError struct {
	Status int
	Body   string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge returned %d: %s", e.Status, e.Body)
}

// =============================================================================
// BRIDGE ENGINE
// =============================================================================

// BridgeEngine posts completions to an on-device runtime bridge that answers
// with the raw envelope text. Endpoints:
//
//	POST {base}/complete   body: Completion JSON
//	GET  {base}/health
type BridgeEngine struct {
	client  *req.Client
	baseURL string
}

// NewBridgeEngine creates a bridge engine. A zero timeout uses
// DefaultBridgeTimeout.
func NewBridgeEngine(baseURL string, timeout time.Duration) *BridgeEngine {
	if timeout <= 0 {
		timeout = DefaultBridgeTimeout
	}
	return &BridgeEngine{
		client:  req.C().SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Complete implements Engine.
func (e *BridgeEngine) Complete(ctx context.Context, c Completion) (string, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode completion: %w", err)
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBodyBytes(body).
		Post(e.baseURL + "/complete")
	if err != nil {
		return "", fmt.Errorf("bridge request failed: %w", err)
	}

	if !resp.IsSuccessState() {
		return "", &BridgeError{Status: resp.StatusCode, Body: util.TruncateRunes(resp.String(), 200)}
	}
	return resp.String(), nil
}

// CheckHealth implements HealthChecker.
func (e *BridgeEngine) CheckHealth(ctx context.Context) error {
	resp, err := e.client.R().SetContext(ctx).Get(e.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}
	if !resp.IsSuccessState() {
		return &BridgeError{Status: resp.StatusCode, Body: util.TruncateRunes(resp.String(), 200)}
	}
	return nil
}
