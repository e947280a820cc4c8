// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides routing statistics and Prometheus metrics for
// fcrouter.
//
// Both RouteStats and Metrics implement router.Observer, so they are attached
// to the controller with router.WithObserver (combined via router.Observers).
//
// # Key Types
//
//   - RouteStats: In-process counters per routing path with the slowest routes
//   - Metrics: Prometheus collectors registered on an injected registerer
//   - Path: Stable label derived from a result source tag
//
// # Usage
//
//	stats := telemetry.NewRouteStats()
//	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
//	ctrl := router.NewController(local, cloud,
//	    router.WithObserver(router.Observers{stats, metrics}))
//
//	snap := stats.Snapshot()
//	fmt.Printf("on-device: %s\n", util.FormatPercent(snap.OnDeviceRatio()))
//
// # Privacy
//
// Statistics are in-memory only. Prompts kept for the slowest routes are
// truncated to 100 characters.
package telemetry
