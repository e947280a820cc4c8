// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the CLI, the benchmark and
// the catalog writer.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - TruncateRunes, TruncateWidth: UTF-8 and column aware truncation
//   - PadRight, StringWidth: table alignment for wide characters
//   - FormatMs, FormatPercent: result formatting
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	cell := util.PadRight(util.TruncateWidth(name, 20), 20)
package util
