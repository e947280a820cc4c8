// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"google.golang.org/api/googleapi"
)

// Error variables for common provider failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("cloud API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrQuotaExceeded indicates the account has no credits or quota left.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// ProviderError is an API error that does not map to a sentinel.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, e.Message)
}

// statusError converts an HTTP status into the matching sentinel, or a
// ProviderError when none applies.
func statusError(provider string, status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	default:
		return &ProviderError{Provider: provider, Status: status, Message: message}
	}
}

// go-openai style errors only expose the status in their text:
// "error, status code: 429, status: 429 Too Many Requests, message: ..."
var statusCodeRe = regexp.MustCompile(`status code: (\d{3})`)

// classifyError maps a provider SDK error onto this package's errors.
// Context errors pass through unchanged.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return statusError(provider, gerr.Code, msg)
	}

	if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return statusError(provider, code, err.Error())
	}

	return &ProviderError{Provider: provider, Message: err.Error()}
}

// IsRetryable reports whether err is transient: rate limiting or a 5xx.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Status >= 500 && perr.Status < 600
	}
	return false
}
