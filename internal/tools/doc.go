// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the tool catalog offered to function-calling models.
//
// A Catalog is an immutable, ordered set of ToolSpec values. Parameter order
// is preserved from the source document through to the wire format so that
// every model sees the tools exactly as they were declared.
//
// # Key Types
//
//   - ToolSpec: Strongly typed tool definition (name, description, parameters)
//   - Param: A single declared parameter with type and required flag
//   - Catalog: Immutable ordered tool set with name lookup
//   - FunctionCall: A call proposed by a model (name + arguments)
//   - Watcher: fsnotify-backed catalog file reloader
//
// # Catalog Files
//
// Catalogs can be loaded from JSON, YAML or TOML documents. JSON and YAML use
// the wire format directly; TOML uses [[tools]] / [[tools.params]] tables.
// JSON and YAML documents are checked against a JSON Schema before decoding;
// TOML documents are checked after conversion.
//
// # Usage
//
//	catalog, err := tools.LoadFile("catalog.json")
//	if err != nil {
//	    return err
//	}
//	spec, ok := catalog.Lookup("set_alarm")
//
// The built-in hands-free catalog is available without any file:
//
//	catalog := tools.Builtin()
//	local := catalog.OnDevice()
package tools
