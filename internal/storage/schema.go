// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is the decision log layout. Times are unix milliseconds; calls,
// signals and trace are JSON documents.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    user_text TEXT NOT NULL,
    score REAL NOT NULL,
    source TEXT NOT NULL,
    path TEXT NOT NULL,
    calls TEXT NOT NULL,
    confidence REAL,
    local_confidence REAL,
    total_time_ms REAL NOT NULL,
    wall_time_ms REAL NOT NULL,
    tool_count INTEGER NOT NULL,
    location_intent INTEGER NOT NULL DEFAULT 0,
    signals TEXT NOT NULL,
    trace TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_path ON decisions(path);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
