// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across fcrouter.
//
// Packages receive a *zap.Logger and name it after themselves
// (logger.Named("router")). Event messages are upper-case tags such as
// ROUTE_DECISION or CLOUD_RETRY so log lines stay greppable.
package logging
