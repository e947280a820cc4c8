// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the fcrouter command line.
//
// # Commands
//
//   - route: route one request; --explain prints preflight signals and the trace
//   - serve: run the HTTP API with metrics and the decision log
//   - bench: run the named routing cases and save the results
//   - tools: list, validate or export tool catalogs
//   - config: show, get, set and initialize configuration
//   - decisions: browse the SQLite decision log
//   - repl: interactive routing with history
//   - models: models installed on the Ollama server
//
// Every command accepts --json for machine-readable output, --config to
// pick a config file and --no-color to disable styling.
//
// App wires the configured on-device engine, cloud provider, catalog and
// observers into a router.Controller; commands build one App each and close
// it on exit.
package cli
