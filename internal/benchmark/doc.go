// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark runs named routing cases through the router and scores
// the calls it produces.
//
// # Key Types
//
//   - Case: a named request, the tools it may use, and the calls it expects
//   - Runner: routes every case and records pass/fail, source and time
//   - Result: per-case outcomes plus accuracy, on-device ratio and average time
//   - Storage: JSON result files under ~/.fcrouter/benchmarks
//
// # Usage
//
//	runner := benchmark.NewRunner(controller, logger)
//	result, err := runner.Run(ctx, "ollama/functiongemma", benchmark.StandardCases())
//	fmt.Println(result.Summary())
//
// Expected calls are matched by name; only the arguments a case lists are
// compared, so free-text fields such as message bodies may vary.
package benchmark
