// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the fcrouter HTTP API on gin.
//
// # Endpoints
//
//   - POST /v1/route             - Route a conversation, returns the validated calls
//   - GET  /v1/tools             - Active tool catalog
//   - GET  /v1/decisions         - Recent decisions (?limit=n)
//   - GET  /v1/decisions/summary - Decision aggregates per routing path
//   - GET  /health               - Health check
//   - GET  /stats                - Routing statistics since start
//   - GET  /metrics              - Prometheus metrics
//
// # Security Features
//
//   - Bearer token authentication with constant-time comparison
//   - Per-client token bucket rate limiting (golang.org/x/time/rate)
//   - Request body size limit
//   - Message role allowlist (user, assistant, developer)
//   - Security headers and panic recovery
//
// # Usage
//
//	srv := server.New(cfg.Server, ctrl, catalog,
//	    server.WithLogger(logger),
//	    server.WithStats(stats))
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
