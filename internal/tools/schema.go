// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// catalogDocumentSchema describes a catalog document: {"tools": [<wire tool>, ...]}.
const catalogDocumentSchema = `{
  "type": "object",
  "required": ["tools"],
  "properties": {
    "tools": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "parameters"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "on_device": {"type": "boolean"},
          "parameters": {
            "type": "object",
            "required": ["properties"],
            "properties": {
              "type": {"const": "object"},
              "properties": {
                "type": "object",
                "additionalProperties": {
                  "type": "object",
                  "required": ["type"],
                  "properties": {
                    "type": {"enum": ["string", "integer", "number", "boolean", "object", "array"]},
                    "description": {"type": "string"}
                  }
                }
              },
              "required": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`

// SchemaError reports a catalog document that does not match the schema.
type SchemaError struct {
	Cause error
}

func (e *SchemaError) Error() string {
	return "catalog schema violation: " + e.Cause.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}

var (
	resolvedOnce   sync.Once
	resolvedSchema *jsonschema.Resolved
	resolveErr     error
)

func documentSchema() (*jsonschema.Resolved, error) {
	resolvedOnce.Do(func() {
		var s jsonschema.Schema
		if err := json.Unmarshal([]byte(catalogDocumentSchema), &s); err != nil {
			resolveErr = fmt.Errorf("parse catalog schema: %w", err)
			return
		}
		resolvedSchema, resolveErr = s.Resolve(nil)
	})
	return resolvedSchema, resolveErr
}

// ValidateDocument checks a JSON catalog document against the catalog schema.
func ValidateDocument(doc []byte) error {
	resolved, err := documentSchema()
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(doc, &decoded); err != nil {
		return &SchemaError{Cause: err}
	}
	if err := resolved.Validate(decoded); err != nil {
		return &SchemaError{Cause: err}
	}
	return nil
}
