// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the SQLite decision log for fcrouter.
//
// Every routed request can be recorded with its preflight signals, the
// visited states and the returned calls, so routing quality can be reviewed
// after the fact.
//
// # Key Types
//
//   - DecisionLog: SQLite-backed store, also a router.Observer
//   - Entry: One recorded decision
//   - PathSummary: Aggregates per routing path
//
// # Usage
//
//	log, err := storage.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//
//	ctrl := router.NewController(local, cloud, router.WithObserver(log))
//	entries, err := log.List(ctx, 20)
//
// # Storage Location
//
// Decisions are stored in ~/.fcrouter/decisions.db unless configured
// otherwise. The database uses the pure Go modernc.org/sqlite driver.
package storage
