// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/autoagent/pkg/errors"
)

// SQLiteHistory persists tool usage in SQLite.
type SQLiteHistory struct {
	db    *sql.DB
	owned bool
}

// NewSQLiteHistory wraps db and ensures the schema.
func NewSQLiteHistory(db *sql.DB) (*SQLiteHistory, error) {
	if db == nil {
		return nil, errors.New(errors.CodeStorage, "db is nil", nil)
	}
	if err := ensureHistorySchema(db); err != nil {
		return nil, errors.New(errors.CodeStorage, "create tool history schema", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// OpenSQLiteHistory opens (or creates) the database file at path.
func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "open tool history", err).WithContext("path", path)
	}
	h, err := NewSQLiteHistory(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	h.owned = true
	return h, nil
}

// Close releases the database when it was opened by OpenSQLiteHistory.
func (h *SQLiteHistory) Close() error {
	if !h.owned {
		return nil
	}
	return h.db.Close()
}

// Record stores a usage entry.
func (h *SQLiteHistory) Record(ctx context.Context, usage Usage) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO tool_usage (tool, input, outcome, error_text, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		usage.Tool,
		usage.Input,
		string(usage.Outcome),
		usage.Error,
		usage.Duration.Milliseconds(),
		usage.Timestamp.UTC(),
	)
	if err != nil {
		return errors.New(errors.CodeStorage, "record tool usage", err)
	}
	return nil
}

// List returns matching entries, oldest first.
func (h *SQLiteHistory) List(ctx context.Context, filter HistoryFilter) ([]Usage, error) {
	query := `SELECT tool, input, outcome, error_text, duration_ms, recorded_at FROM tool_usage`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Tool != "" {
		addFilter("tool = ?", filter.Tool)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", string(filter.Outcome))
	}
	query += where + " ORDER BY recorded_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "list tool usage", err)
	}
	defer rows.Close()

	var out []Usage
	for rows.Next() {
		var (
			u        Usage
			outcome  string
			duration int64
			recorded sql.NullTime
		)
		if err := rows.Scan(&u.Tool, &u.Input, &outcome, &u.Error, &duration, &recorded); err != nil {
			return nil, errors.New(errors.CodeStorage, "scan tool usage", err)
		}
		u.Outcome = Outcome(outcome)
		u.Duration = time.Duration(duration) * time.Millisecond
		if recorded.Valid {
			u.Timestamp = recorded.Time
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeStorage, "iterate tool usage", err)
	}
	return out, nil
}

func ensureHistorySchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tool_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tool TEXT NOT NULL,
			input TEXT,
			outcome TEXT NOT NULL,
			error_text TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tool_usage_tool ON tool_usage(tool);
		CREATE INDEX IF NOT EXISTS idx_tool_usage_outcome ON tool_usage(outcome);
	`)
	return err
}
