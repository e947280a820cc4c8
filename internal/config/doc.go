// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for fcrouter.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - LocalConfig: On-device engine selection (ollama or bridge)
//   - CloudConfig: Cloud provider, keys, retries and rate limit
//   - ServerConfig: HTTP API listen address, auth and limits
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FCROUTER_*, GEMINI_API_KEY, OPENAI_API_KEY)
//   - .env in the working directory, then ~/.fcrouter/.env
//   - ~/.fcrouter/config.toml
//   - ~/.fcrouter/config.json
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.CloudTimeout()
//
// API keys are redacted by Config.String and never written to logs.
package config
