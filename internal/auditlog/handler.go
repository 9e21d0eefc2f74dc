// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package auditlog persists pipeline log records into a local SQLite
// database so every file's journey through the pipeline survives restarts
// and can be queried after the fact.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS pipeline_logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        TEXT NOT NULL,
	level     TEXT NOT NULL,
	component TEXT,
	message   TEXT NOT NULL,
	meta      TEXT
);`

const insertSQL = `INSERT INTO pipeline_logs (ts, level, component, message, meta) VALUES (?, ?, ?, ?, ?)`

// Handler is a slog.Handler that appends every record to the audit table.
// Insert failures are dropped on purpose: the audit trail must never take
// the pipeline down with it.
type Handler struct {
	db    *sql.DB
	level slog.Level
	attrs []slog.Attr
	group string
}

// Open prepares the audit database at path and returns a handler storing
// records at or above level.
func Open(path string, level slog.Level) (*Handler, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db %s: %w", path, err)
	}
	// modernc sqlite serializes writes per connection; one is enough here.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &Handler{db: db, level: level}, nil
}

// Close releases the underlying database.
func (h *Handler) Close() error { return h.db.Close() }

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	meta := map[string]any{}
	component := ""

	collect := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		if key == "component" {
			component = a.Value.String()
			return
		}
		meta[key] = a.Value.Any()
	}
	for _, a := range h.attrs {
		collect(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	var metaJSON []byte
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(jsonSafe(meta))
	}

	_, _ = h.db.ExecContext(ctx, insertSQL,
		rec.Time.UTC().Format(time.RFC3339Nano),
		rec.Level.String(),
		component,
		rec.Message,
		string(metaJSON),
	)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

// jsonSafe replaces values json.Marshal would choke on (errors, arbitrary
// structs) with their string form.
func jsonSafe(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch tv := v.(type) {
		case nil, bool, string, int, int64, uint64, float64, time.Time, time.Duration:
			out[k] = v
		case error:
			out[k] = tv.Error()
		default:
			if _, err := json.Marshal(v); err == nil {
				out[k] = v
			} else {
				out[k] = fmt.Sprintf("%v", v)
			}
		}
	}
	return out
}
