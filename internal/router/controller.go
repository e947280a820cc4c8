// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// System prompts given to the on-device model.
const (
	DefaultSystemPrompt = "You are a helpful assistant that can use tools."
	RetrySystemPrompt   = "You MUST call one of the provided tools. " +
		"Do not write any text. Only call the most relevant tool."
)

// ============================================================================
// STATES
// ============================================================================

// State is a checkpoint of the escalation sequence.
type State int

const (
	StatePreflight State = iota
	StateLocalAttempt
	StateLocalRetry
	StateCloudDirect
	StateCloudFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePreflight:
		return "preflight"
	case StateLocalAttempt:
		return "local_attempt"
	case StateLocalRetry:
		return "local_retry"
	case StateCloudDirect:
		return "cloud_direct"
	case StateCloudFallback:
		return "cloud_fallback"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StatePreflight; st <= StateDone; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// ============================================================================
// OBSERVER
// ============================================================================

// Decision describes one completed routing call.
type Decision struct {
	Messages []Message
	UserText string
	Catalog  *tools.Catalog
	Signals  Signals
	Result   Result
	Started  time.Time
	Duration time.Duration
}

// Observer is notified after every routing call. Implementations must be safe
// for concurrent use and must not block for long.
type Observer interface {
	OnDecision(ctx context.Context, d Decision)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, d Decision)

// OnDecision calls f.
func (f ObserverFunc) OnDecision(ctx context.Context, d Decision) { f(ctx, d) }

// Observers fans a decision out to several observers in order.
type Observers []Observer

// OnDecision implements Observer.
func (os Observers) OnDecision(ctx context.Context, d Decision) {
	for _, o := range os {
		if o != nil {
			o.OnDecision(ctx, d)
		}
	}
}

// ============================================================================
// CONTROLLER
// ============================================================================

// Controller runs the preflight, local, retry and cloud checkpoints in order.
// It holds no per-request state, so one Controller may serve concurrent calls.
type Controller struct {
	local    InferenceAdapter
	cloud    InferenceAdapter
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers an observer for completed decisions.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController wires a local and a cloud adapter into a Controller.
func NewController(local, cloud InferenceAdapter, opts ...Option) *Controller {
	c := &Controller{
		local:  local,
		cloud:  cloud,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the state of a single routing call.
type run struct {
	ctx      context.Context
	c        *Controller
	messages []Message
	catalog  *tools.Catalog
	userText string
	signals  Signals

	first  InferenceResult
	second InferenceResult
	result Result
}

type transition func(*run) State

var transitions = [...]transition{
	StatePreflight:     (*run).preflight,
	StateLocalAttempt:  (*run).localAttempt,
	StateLocalRetry:    (*run).localRetry,
	StateCloudDirect:   (*run).cloudDirect,
	StateCloudFallback: (*run).cloudFallback,
}

// Route picks a backend for messages and returns a validated, catalog-filtered
// result. It never fails: when every attempt comes back empty the result is an
// empty cloud fallback.
func (c *Controller) Route(ctx context.Context, messages []Message, catalog *tools.Catalog) Result {
	started := c.now()
	r := &run{
		ctx:      ctx,
		c:        c,
		messages: messages,
		catalog:  catalog,
		userText: UserText(messages),
	}

	for state := StatePreflight; state != StateDone; {
		state = transitions[state](r)
	}

	c.logger.Info("ROUTE_DECISION",
		zap.String("source", r.result.Source),
		zap.Float64("score", r.result.Score),
		zap.Int("calls", len(r.result.FunctionCalls)),
		zap.Float64("total_time_ms", r.result.TotalTimeMs))

	if c.observer != nil {
		c.observer.OnDecision(ctx, Decision{
			Messages: messages,
			UserText: r.userText,
			Catalog:  catalog,
			Signals:  r.signals,
			Result:   r.result,
			Started:  started,
			Duration: c.now().Sub(started),
		})
	}
	return r.result
}

// ============================================================================
// TRANSITIONS
// ============================================================================

func (r *run) preflight() State {
	r.signals = Breakdown(r.userText, r.catalog)
	r.result.Score = r.signals.Score()
	r.trace(Step{State: StatePreflight}, nil)

	if r.signals.Cloud() {
		r.c.logger.Debug("PREFLIGHT_CLOUD", zap.Stringer("signals", r.signals))
		return StateCloudDirect
	}
	return StateLocalAttempt
}

func (r *run) localAttempt() State {
	r.first = r.c.local.Invoke(r.ctx, r.messages, r.catalog, DefaultSystemPrompt)
	verdict := Validate(r.first, r.catalog, r.userText)
	r.trace(stepFor(StateLocalAttempt, r.first), &verdict)

	if verdict.Valid {
		r.finishLocal(r.first, SourceOnDevice, r.first.ElapsedMs)
		return StateDone
	}
	r.c.logger.Debug("LOCAL_REJECTED", zap.String("reason", verdict.Reason))
	return StateLocalRetry
}

func (r *run) localRetry() State {
	r.second = r.c.local.Invoke(r.ctx, r.messages, r.catalog, RetrySystemPrompt)
	verdict := Validate(r.second, r.catalog, r.userText)
	r.trace(stepFor(StateLocalRetry, r.second), &verdict)

	if verdict.Valid {
		r.finishLocal(r.second, SourceOnDeviceRetry, r.first.ElapsedMs+r.second.ElapsedMs)
		return StateDone
	}
	r.c.logger.Debug("LOCAL_RETRY_REJECTED", zap.String("reason", verdict.Reason))
	return StateCloudFallback
}

func (r *run) cloudDirect() State {
	cloud := r.c.cloud.Invoke(r.ctx, r.messages, r.catalog, "")
	r.trace(stepFor(StateCloudDirect, cloud), nil)
	r.finishCloud(cloud, SourceCloudPreflight(r.result.Score), cloud.ElapsedMs)
	return StateDone
}

func (r *run) cloudFallback() State {
	cloud := r.c.cloud.Invoke(r.ctx, r.messages, r.catalog, "")
	r.trace(stepFor(StateCloudFallback, cloud), nil)
	r.finishCloud(cloud, SourceCloudFallback, cloud.ElapsedMs+r.first.ElapsedMs+r.second.ElapsedMs)
	r.result.LocalConfidence = floatPtr(r.first.Confidence)
	return StateDone
}

func (r *run) finishLocal(res InferenceResult, source string, total float64) {
	r.result.FunctionCalls = r.catalog.FilterCalls(res.FunctionCalls)
	r.result.Source = source
	r.result.Confidence = floatPtr(res.Confidence)
	r.result.TotalTimeMs = total
}

func (r *run) finishCloud(res InferenceResult, source string, total float64) {
	r.result.FunctionCalls = r.catalog.FilterCalls(res.FunctionCalls)
	r.result.Source = source
	r.result.TotalTimeMs = total
}

func (r *run) trace(step Step, verdict *Verdict) {
	step.Verdict = verdict
	r.result.Trace = append(r.result.Trace, step)
}

func stepFor(state State, res InferenceResult) Step {
	return Step{
		State:      state,
		ElapsedMs:  res.ElapsedMs,
		Confidence: res.Confidence,
		Calls:      len(res.FunctionCalls),
		Malformed:  res.RawMalformed,
	}
}
