// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/storage"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNotFound     = 7
	// ExitBenchFailed is returned by bench when any case fails.
	ExitBenchFailed = 9
)

// CommandError represents a CLI command failure with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
	Code    int
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err for command and action.
func NewCommandError(command, action string, err error) *CommandError {
	return &CommandError{Command: command, Action: action, Err: err}
}

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}

	var usage *UsageError
	var validation config.ValidationError
	var validations config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &validation), errors.As(err, &validations):
		return ExitConfigError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}
