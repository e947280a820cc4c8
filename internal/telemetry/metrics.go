// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jeranaias/fcrouter/internal/router"
)

// =============================================================================
// PROMETHEUS METRICS
// =============================================================================

// Metrics exports routing decisions to Prometheus.
type Metrics struct {
	decisions     *prometheus.CounterVec
	reportedTime  *prometheus.HistogramVec
	wallTime      *prometheus.HistogramVec
	preflight     prometheus.Histogram
	functionCalls *prometheus.CounterVec
	verdicts      *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// NewMetrics registers the collectors on registerer. A nil registerer uses
// the Prometheus default.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrouter_route_decisions_total",
				Help: "Total routed requests by final path",
			},
			[]string{"path"},
		),
		reportedTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fcrouter_route_reported_seconds",
				Help:    "Inference time reported by the adapters, summed per request",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
			},
			[]string{"path"},
		),
		wallTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fcrouter_route_duration_seconds",
				Help:    "Wall-clock duration of routing calls",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"path"},
		),
		preflight: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fcrouter_preflight_score",
				Help:    "Distribution of preflight complexity scores",
				Buckets: []float64{.1, .2, .3, .4, .5, .6, .8, 1},
			},
		),
		functionCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrouter_function_calls_total",
				Help: "Function calls returned to callers by tool name",
			},
			[]string{"tool"},
		),
		verdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrouter_local_verdicts_total",
				Help: "Validation verdicts of on-device attempts",
			},
			[]string{"attempt", "valid"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrouter_http_requests_total",
				Help: "HTTP API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// OnDecision implements router.Observer.
func (m *Metrics) OnDecision(_ context.Context, d router.Decision) {
	path := string(PathOf(d.Result.Source))
	m.decisions.WithLabelValues(path).Inc()
	m.reportedTime.WithLabelValues(path).Observe(d.Result.TotalTimeMs / 1000)
	m.wallTime.WithLabelValues(path).Observe(d.Duration.Seconds())
	m.preflight.Observe(d.Result.Score)

	for _, fc := range d.Result.FunctionCalls {
		m.functionCalls.WithLabelValues(fc.Name).Inc()
	}
	for _, s := range d.Result.Trace {
		if s.Verdict == nil {
			continue
		}
		valid := "false"
		if s.Verdict.Valid {
			valid = "true"
		}
		m.verdicts.WithLabelValues(s.State.String(), valid).Inc()
	}
}

// ObserveHTTP counts one API request.
func (m *Metrics) ObserveHTTP(route string, code int) {
	m.httpRequests.WithLabelValues(route, statusClass(code)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var (
	_ router.Observer = (*Metrics)(nil)
	_ router.Observer = (*RouteStats)(nil)
)
