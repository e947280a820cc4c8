// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyName indicates a tool or parameter without a name.
	ErrEmptyName = errors.New("empty name")

	// ErrDuplicateTool indicates two tools share a name within one catalog.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrDuplicateParam indicates two parameters share a name within one tool.
	ErrDuplicateParam = errors.New("duplicate parameter name")

	// ErrUnknownRequired indicates a required name that is not a declared parameter.
	ErrUnknownRequired = errors.New("required parameter is not declared")

	// ErrInvalidType indicates a parameter type outside the supported set.
	ErrInvalidType = errors.New("invalid parameter type")
)

// =============================================================================
// PARAMETER TYPES
// =============================================================================

// ParamType is the declared JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// Valid reports whether t is one of the supported parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	default:
		return false
	}
}

// Upper returns the upper-case spelling used by providers such as Gemini.
func (t ParamType) Upper() string {
	return strings.ToUpper(string(t))
}

// =============================================================================
// TOOL SPEC
// =============================================================================

// Param is a single declared tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ParamSchema is the ordered parameter list of a tool.
type ParamSchema struct {
	Params []Param
}

// Lookup returns the declared parameter with the given name.
func (s ParamSchema) Lookup(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// RequiredNames returns the names of required parameters in declaration order.
func (s ParamSchema) RequiredNames() []string {
	names := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// ToolSpec describes a callable tool.
//
// OnDevice is catalog metadata marking tools whose side effect can be carried
// out without network access. It is never part of the wire format sent to a
// model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  ParamSchema
	OnDevice    bool
}

// Validate checks the structural invariants of a single tool.
func (t ToolSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tool: %w", ErrEmptyName)
	}
	seen := make(map[string]bool, len(t.Parameters.Params))
	for _, p := range t.Parameters.Params {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("tool %s: parameter: %w", t.Name, ErrEmptyName)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: %w: %s", t.Name, ErrDuplicateParam, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return fmt.Errorf("tool %s: param %s: %w: %q", t.Name, p.Name, ErrInvalidType, p.Type)
		}
	}
	return nil
}

// clone returns a deep copy so catalogs never share parameter slices with callers.
func (t ToolSpec) clone() ToolSpec {
	out := t
	out.Parameters.Params = append([]Param(nil), t.Parameters.Params...)
	return out
}

// =============================================================================
// FUNCTION CALL
// =============================================================================

// FunctionCall is a tool invocation proposed by a model. It does not have to
// reference a declared tool until it has been validated.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// String renders the call as name(k=v, ...) in argument-key order.
func (c FunctionCall) String() string {
	keys := sortedKeys(c.Arguments)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Arguments[k]))
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}
