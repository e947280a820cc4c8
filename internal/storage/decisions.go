// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/telemetry"
	"github.com/jeranaias/fcrouter/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when a decision ID is not in the log.
var ErrNotFound = errors.New("decision not found")

// DefaultMaxEntries bounds the log; older decisions are pruned.
const DefaultMaxEntries = 10000

// =============================================================================
// ENTRY TYPES
// =============================================================================

// Entry is one recorded routing decision.
type Entry struct {
	ID              string               `json:"id"`
	CreatedAt       time.Time            `json:"created_at"`
	UserText        string               `json:"user_text"`
	Score           float64              `json:"score"`
	Source          string               `json:"source"`
	Path            telemetry.Path       `json:"path"`
	FunctionCalls   []tools.FunctionCall `json:"function_calls"`
	Confidence      *float64             `json:"confidence,omitempty"`
	LocalConfidence *float64             `json:"local_confidence,omitempty"`
	TotalTimeMs     float64              `json:"total_time_ms"`
	WallTimeMs      float64              `json:"wall_time_ms"`
	ToolCount       int                  `json:"tool_count"`
	LocationIntent  bool                 `json:"location_intent"`
	Signals         router.Signals       `json:"signals"`
	Trace           []router.Step        `json:"trace"`
}

// PathSummary aggregates decisions that took the same path.
type PathSummary struct {
	Path        telemetry.Path `json:"path"`
	Count       int            `json:"count"`
	AvgScore    float64        `json:"avg_score"`
	AvgTimeMs   float64        `json:"avg_time_ms"`
	EmptyResult int            `json:"empty_results"`
}

// EntryFromDecision converts a controller decision into a log entry.
func EntryFromDecision(id string, d router.Decision) Entry {
	if id == "" {
		id = uuid.NewString()
	}
	calls := d.Result.FunctionCalls
	if calls == nil {
		calls = []tools.FunctionCall{}
	}
	return Entry{
		ID:              id,
		CreatedAt:       d.Started,
		UserText:        d.UserText,
		Score:           d.Result.Score,
		Source:          d.Result.Source,
		Path:            telemetry.PathOf(d.Result.Source),
		FunctionCalls:   calls,
		Confidence:      d.Result.Confidence,
		LocalConfidence: d.Result.LocalConfidence,
		TotalTimeMs:     d.Result.TotalTimeMs,
		WallTimeMs:      float64(d.Duration) / float64(time.Millisecond),
		ToolCount:       d.Catalog.Len(),
		LocationIntent:  router.DetectLocationIntent(d.UserText),
		Signals:         d.Signals,
		Trace:           d.Result.Trace,
	}
}

// Result rebuilds the routing result the entry was recorded from.
func (e Entry) Result() router.Result {
	return router.Result{
		FunctionCalls:   e.FunctionCalls,
		Source:          e.Source,
		Confidence:      e.Confidence,
		LocalConfidence: e.LocalConfidence,
		TotalTimeMs:     e.TotalTimeMs,
		Score:           e.Score,
		Trace:           e.Trace,
	}
}

// =============================================================================
// REQUEST IDS
// =============================================================================

type idKey struct{}

// WithDecisionID attaches the ID the decision of this request is stored under.
func WithDecisionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// DecisionID returns the ID attached by WithDecisionID, or "".
func DecisionID(ctx context.Context) string {
	id, _ := ctx.Value(idKey{}).(string)
	return id
}

// =============================================================================
// DECISION LOG
// =============================================================================

// DecisionLog persists routing decisions in SQLite. Safe for concurrent use.
type DecisionLog struct {
	db         *sql.DB
	logger     *zap.Logger
	maxEntries int
	now        func() time.Time
}

// Option configures a DecisionLog.
type Option func(*DecisionLog)

// WithLogger sets the logger used when recording from the observer fails.
func WithLogger(l *zap.Logger) Option {
	return func(d *DecisionLog) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMaxEntries bounds the number of stored decisions (0 = unlimited).
func WithMaxEntries(n int) Option {
	return func(d *DecisionLog) { d.maxEntries = n }
}

// Open opens (creating if needed) the decision log at path.
func Open(path string, opts ...Option) (*DecisionLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
		"PRAGMA wal_autocheckpoint=1000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	d := &DecisionLog{
		db:         db,
		logger:     zap.NewNop(),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close closes the database.
func (d *DecisionLog) Close() error {
	return d.db.Close()
}

// OnDecision implements router.Observer. Failures are logged, never returned,
// so a broken log cannot affect routing.
func (d *DecisionLog) OnDecision(ctx context.Context, dec router.Decision) {
	entry := EntryFromDecision(DecisionID(ctx), dec)
	// the request context may already be cancelled once the caller has its answer
	if err := d.Record(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warn("DECISION_LOG_FAILED", zap.String("id", entry.ID), zap.Error(err))
	}
}

// Record stores an entry, assigning an ID and timestamp when missing.
func (d *DecisionLog) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = d.now()
	}
	if e.FunctionCalls == nil {
		e.FunctionCalls = []tools.FunctionCall{}
	}

	calls, err := json.Marshal(e.FunctionCalls)
	if err != nil {
		return fmt.Errorf("encode calls: %w", err)
	}
	signals, err := json.Marshal(e.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	trace, err := json.Marshal(e.Trace)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
INSERT INTO decisions (id, created_at, user_text, score, source, path, calls,
    confidence, local_confidence, total_time_ms, wall_time_ms, tool_count,
    location_intent, signals, trace)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixMilli(), e.UserText, e.Score, e.Source, string(e.Path), string(calls),
		nullFloat(e.Confidence), nullFloat(e.LocalConfidence), e.TotalTimeMs, e.WallTimeMs, e.ToolCount,
		e.LocationIntent, string(signals), string(trace))
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	if d.maxEntries > 0 {
		if _, err := d.Prune(ctx, d.maxEntries); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

const selectColumns = `id, created_at, user_text, score, source, path, calls,
    confidence, local_confidence, total_time_ms, wall_time_ms, tool_count,
    location_intent, signals, trace`

// List returns up to limit decisions, newest first. A limit <= 0 returns all.
func (d *DecisionLog) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM decisions ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one decision by ID.
func (d *DecisionLog) Get(ctx context.Context, id string) (Entry, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM decisions WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Count returns the number of stored decisions.
func (d *DecisionLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

// Summary aggregates all stored decisions per path, in escalation order.
func (d *DecisionLog) Summary(ctx context.Context) ([]PathSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT path, COUNT(*), AVG(score), AVG(total_time_ms),
       SUM(CASE WHEN calls = '[]' THEN 1 ELSE 0 END)
FROM decisions GROUP BY path`)
	if err != nil {
		return nil, fmt.Errorf("summarize decisions: %w", err)
	}
	defer rows.Close()

	byPath := make(map[telemetry.Path]PathSummary)
	for rows.Next() {
		var s PathSummary
		var path string
		if err := rows.Scan(&path, &s.Count, &s.AvgScore, &s.AvgTimeMs, &s.EmptyResult); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Path = telemetry.Path(path)
		byPath[s.Path] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]PathSummary, 0, len(byPath))
	order := append([]telemetry.Path{}, telemetry.Paths...)
	for _, p := range append(order, telemetry.PathUnknown) {
		if s, ok := byPath[p]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Prune deletes the oldest decisions beyond keep and returns how many were
// removed.
func (d *DecisionLog) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
DELETE FROM decisions WHERE id NOT IN (
    SELECT id FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?
)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e               Entry
		createdAt       int64
		path            string
		calls, signals  string
		trace           string
		conf, localConf sql.NullFloat64
	)
	err := s.Scan(&e.ID, &createdAt, &e.UserText, &e.Score, &e.Source, &path, &calls,
		&conf, &localConf, &e.TotalTimeMs, &e.WallTimeMs, &e.ToolCount,
		&e.LocationIntent, &signals, &trace)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan decision: %w", err)
	}

	e.CreatedAt = time.UnixMilli(createdAt)
	e.Path = telemetry.Path(path)
	if conf.Valid {
		e.Confidence = &conf.Float64
	}
	if localConf.Valid {
		e.LocalConfidence = &localConf.Float64
	}
	if err := json.UnmarshalFromString(calls, &e.FunctionCalls); err != nil {
		return Entry{}, fmt.Errorf("decode calls: %w", err)
	}
	if err := json.UnmarshalFromString(signals, &e.Signals); err != nil {
		return Entry{}, fmt.Errorf("decode signals: %w", err)
	}
	if err := json.UnmarshalFromString(trace, &e.Trace); err != nil {
		return Entry{}, fmt.Errorf("decode trace: %w", err)
	}
	return e, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

var _ router.Observer = (*DecisionLog)(nil)
