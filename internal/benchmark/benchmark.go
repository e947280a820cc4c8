// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/telemetry"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// Router routes one request. *router.Controller implements it.
type Router interface {
	Route(ctx context.Context, messages []router.Message, catalog *tools.Catalog) router.Result
}

// =============================================================================
// BENCHMARK RUNNER
// =============================================================================

// Runner executes benchmark cases through a router.
// Runner is not safe for concurrent use.
type Runner struct {
	router Router
	logger *zap.Logger
	now    func() time.Time

	// OnCase, when set, is called after each case completes.
	OnCase func(CaseResult)
}

// NewRunner creates a runner. A nil logger is replaced with a no-op one.
func NewRunner(rt Router, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{router: rt, logger: logger, now: time.Now}
}

// Run executes cases in order and returns the aggregated result. label names
// the configuration under test (engine and model). Cancellation stops the
// run; cases not yet started are recorded as failed.
func (r *Runner) Run(ctx context.Context, label string, cases []Case) (*Result, error) {
	result := &Result{
		Label:     label,
		StartTime: r.now(),
		Cases:     make([]CaseResult, 0, len(cases)),
	}

	var runErr error
	for _, c := range cases {
		var cr CaseResult
		if runErr == nil {
			if err := ctx.Err(); err != nil {
				runErr = err
			}
		}
		if runErr != nil {
			cr = CaseResult{Name: c.Name, Prompt: c.Prompt(), Status: StatusFailed, Error: "Context cancelled"}
		} else {
			cr = r.runCase(ctx, c)
		}
		result.Cases = append(result.Cases, cr)
		if r.OnCase != nil {
			r.OnCase(cr)
		}
	}

	result.EndTime = r.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.computeAggregates()

	return result, runErr
}

// runCase routes a single case and scores it.
func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	cr := CaseResult{
		Name:   c.Name,
		Prompt: c.Prompt(),
		Status: StatusFailed,
	}
	if len(c.Messages) == 0 || c.Catalog.Len() == 0 {
		cr.Error = "case has no messages or tools"
		return cr
	}

	start := r.now()
	res := r.router.Route(ctx, c.Messages, c.Catalog)
	cr.WallTime = r.now().Sub(start)

	cr.Source = res.Source
	cr.Path = telemetry.PathOf(res.Source)
	cr.TotalTimeMs = res.TotalTimeMs
	cr.Score = res.Score
	cr.Calls = res.FunctionCalls

	if ok, reason := Check(c.Expect, res.FunctionCalls); ok {
		cr.Status = StatusPassed
	} else {
		cr.Error = reason
	}

	r.logger.Debug("BENCHMARK_CASE",
		zap.String("case", c.Name),
		zap.String("status", string(cr.Status)),
		zap.String("source", cr.Source),
		zap.Float64("total_time_ms", cr.TotalTimeMs),
		zap.String("reason", cr.Error),
	)
	return cr
}

// =============================================================================
// RESULT COMPUTATION
// =============================================================================

// computeAggregates calculates accuracy, on-device ratio and average time.
func (r *Result) computeAggregates() {
	r.Passed, r.Failed, r.OnDevice = 0, 0, 0
	var totalMs float64
	var routed int

	for _, c := range r.Cases {
		switch c.Status {
		case StatusPassed:
			r.Passed++
		case StatusFailed:
			r.Failed++
		}
		if c.Source == "" {
			continue
		}
		routed++
		totalMs += c.TotalTimeMs
		if c.Path.Local() {
			r.OnDevice++
		}
	}

	r.Accuracy, r.OnDeviceRatio, r.AvgTimeMs = 0, 0, 0
	if n := len(r.Cases); n > 0 {
		r.Accuracy = float64(r.Passed) / float64(n)
	}
	if routed > 0 {
		r.OnDeviceRatio = float64(r.OnDevice) / float64(routed)
		r.AvgTimeMs = totalMs / float64(routed)
	}
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// FormatDuration formats duration for display.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "N/A"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
