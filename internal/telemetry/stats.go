// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/util"
)

// maxSlowest is how many of the slowest routes a snapshot keeps.
const maxSlowest = 10

// =============================================================================
// ROUTE STATS
// =============================================================================

// RouteStats tracks routing outcomes since it was created. Safe for
// concurrent use.
type RouteStats struct {
	mu    sync.RWMutex
	stats Stats
	now   func() time.Time
}

// Stats is a point-in-time copy of RouteStats.
type Stats struct {
	StartTime time.Time `json:"start_time"`

	Total      int              `json:"total"`
	ByPath     map[Path]int     `json:"by_path"`
	EmptyCall  int              `json:"empty_results"`
	Malformed  int              `json:"malformed_outputs"`
	Calls      int              `json:"function_calls"`
	ScoreSum   float64          `json:"-"`
	TimeSum    float64          `json:"-"`
	TimeByPath map[Path]float64 `json:"-"`

	Slowest []RouteSample `json:"slowest"`
}

// RouteSample describes a single routed request.
type RouteSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Prompt      string    `json:"prompt"` // first 100 chars
	Path        Path      `json:"path"`
	Score       float64   `json:"score"`
	TotalTimeMs float64   `json:"total_time_ms"`
}

// NewRouteStats creates an empty tracker.
func NewRouteStats() *RouteStats {
	rs := &RouteStats{now: time.Now}
	rs.stats = newStats(rs.now())
	return rs
}

func newStats(start time.Time) Stats {
	return Stats{
		StartTime:  start,
		ByPath:     make(map[Path]int),
		TimeByPath: make(map[Path]float64),
		Slowest:    make([]RouteSample, 0),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// OnDecision implements router.Observer.
func (rs *RouteStats) OnDecision(_ context.Context, d router.Decision) {
	malformed := false
	for _, s := range d.Result.Trace {
		if s.Malformed {
			malformed = true
			break
		}
	}
	rs.Record(d.UserText, d.Result, malformed)
}

// Record adds one routing result.
func (rs *RouteStats) Record(prompt string, res router.Result, malformed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	path := PathOf(res.Source)
	s := &rs.stats
	s.Total++
	s.ByPath[path]++
	s.Calls += len(res.FunctionCalls)
	if len(res.FunctionCalls) == 0 {
		s.EmptyCall++
	}
	if malformed {
		s.Malformed++
	}
	s.ScoreSum += res.Score
	s.TimeSum += res.TotalTimeMs
	s.TimeByPath[path] += res.TotalTimeMs

	s.Slowest = append(s.Slowest, RouteSample{
		Timestamp:   rs.now(),
		Prompt:      util.TruncateRunes(prompt, 100),
		Path:        path,
		Score:       res.Score,
		TotalTimeMs: res.TotalTimeMs,
	})
	sort.SliceStable(s.Slowest, func(i, j int) bool {
		return s.Slowest[i].TotalTimeMs > s.Slowest[j].TotalTimeMs
	})
	if len(s.Slowest) > maxSlowest {
		s.Slowest = s.Slowest[:maxSlowest]
	}
}

// Reset clears all counters and starts a new window.
func (rs *RouteStats) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.stats = newStats(rs.now())
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// Snapshot returns a copy of the current statistics.
func (rs *RouteStats) Snapshot() Stats {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	src := rs.stats
	dst := src
	dst.ByPath = make(map[Path]int, len(src.ByPath))
	for k, v := range src.ByPath {
		dst.ByPath[k] = v
	}
	dst.TimeByPath = make(map[Path]float64, len(src.TimeByPath))
	for k, v := range src.TimeByPath {
		dst.TimeByPath[k] = v
	}
	dst.Slowest = make([]RouteSample, len(src.Slowest))
	copy(dst.Slowest, src.Slowest)
	return dst
}

// OnDevice returns the number of requests answered on-device.
func (s Stats) OnDevice() int {
	return s.ByPath[PathOnDevice] + s.ByPath[PathOnDeviceRetry]
}

// OnDeviceRatio returns the share of requests answered on-device.
func (s Stats) OnDeviceRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.OnDevice()) / float64(s.Total)
}

// Escalations returns the number of requests that failed both local
// attempts and fell back to the cloud.
func (s Stats) Escalations() int {
	return s.ByPath[PathCloudFallback]
}

// AvgScore returns the mean preflight score.
func (s Stats) AvgScore() float64 {
	if s.Total == 0 {
		return 0
	}
	return s.ScoreSum / float64(s.Total)
}

// AvgTimeMs returns the mean reported total time.
func (s Stats) AvgTimeMs() float64 {
	if s.Total == 0 {
		return 0
	}
	return s.TimeSum / float64(s.Total)
}

// AvgTimeMsFor returns the mean reported time of one path.
func (s Stats) AvgTimeMsFor(p Path) float64 {
	n := s.ByPath[p]
	if n == 0 {
		return 0
	}
	return s.TimeByPath[p] / float64(n)
}

// Summary is the JSON view served by /stats.
type Summary struct {
	StartTime     time.Time        `json:"start_time"`
	Total         int              `json:"total"`
	ByPath        map[Path]int     `json:"by_path"`
	OnDeviceRatio float64          `json:"on_device_ratio"`
	Escalations   int              `json:"escalations"`
	EmptyResults  int              `json:"empty_results"`
	Malformed     int              `json:"malformed_outputs"`
	AvgScore      float64          `json:"avg_score"`
	AvgTimeMs     float64          `json:"avg_time_ms"`
	AvgTimeByPath map[Path]float64 `json:"avg_time_ms_by_path"`
	Slowest       []RouteSample    `json:"slowest"`
}

// Summary flattens the snapshot with its derived values.
func (s Stats) Summary() Summary {
	avg := make(map[Path]float64, len(s.ByPath))
	for p := range s.ByPath {
		avg[p] = s.AvgTimeMsFor(p)
	}
	return Summary{
		StartTime:     s.StartTime,
		Total:         s.Total,
		ByPath:        s.ByPath,
		OnDeviceRatio: s.OnDeviceRatio(),
		Escalations:   s.Escalations(),
		EmptyResults:  s.EmptyCall,
		Malformed:     s.Malformed,
		AvgScore:      s.AvgScore(),
		AvgTimeMs:     s.AvgTimeMs(),
		AvgTimeByPath: avg,
		Slowest:       s.Slowest,
	}
}
