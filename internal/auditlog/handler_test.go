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

package auditlog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHandler(t *testing.T, level slog.Level) (*Handler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	h, err := Open(path, level)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, path
}

func queryLogs(t *testing.T, path string) []map[string]string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT level, component, message, meta FROM pipeline_logs ORDER BY id`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []map[string]string
	for rows.Next() {
		var level, component, message string
		var meta sql.NullString
		require.NoError(t, rows.Scan(&level, &component, &message, &meta))
		out = append(out, map[string]string{
			"level": level, "component": component, "message": message, "meta": meta.String,
		})
	}
	require.NoError(t, rows.Err())
	return out
}

func TestHandlerPersistsRecords(t *testing.T) {
	h, path := openTestHandler(t, slog.LevelInfo)
	logger := slog.New(h)

	logger.Info("queued inbox object",
		slog.String("component", "watcher"),
		slog.String("key", "report.csv"),
		slog.Int64("size", 42))
	logger.Warn("schema rejected by quality gate",
		slog.String("component", "router"),
		slog.String("schema", "orders"))

	logs := queryLogs(t, path)
	require.Len(t, logs, 2)

	assert.Equal(t, "INFO", logs[0]["level"])
	assert.Equal(t, "watcher", logs[0]["component"])
	assert.Equal(t, "queued inbox object", logs[0]["message"])

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(logs[0]["meta"]), &meta))
	assert.Equal(t, "report.csv", meta["key"])
	assert.EqualValues(t, 42, meta["size"])

	assert.Equal(t, "WARN", logs[1]["level"])
	assert.Equal(t, "router", logs[1]["component"])
}

func TestHandlerLevelFilter(t *testing.T) {
	h, path := openTestHandler(t, slog.LevelWarn)
	logger := slog.New(h)

	logger.Debug("noise")
	logger.Info("more noise")
	logger.Error("something broke")

	logs := queryLogs(t, path)
	require.Len(t, logs, 1)
	assert.Equal(t, "ERROR", logs[0]["level"])
}

func TestHandlerWithAttrsCarriesComponent(t *testing.T) {
	h, path := openTestHandler(t, slog.LevelInfo)
	logger := slog.New(h).With(slog.String("component", "worker"), slog.Int("worker", 3))

	logger.Info("processing inbox object", slog.String("key", "clip.mp4"))

	logs := queryLogs(t, path)
	require.Len(t, logs, 1)
	assert.Equal(t, "worker", logs[0]["component"])

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(logs[0]["meta"]), &meta))
	assert.EqualValues(t, 3, meta["worker"])
	assert.Equal(t, "clip.mp4", meta["key"])
}

func TestHandlerErrorValues(t *testing.T) {
	h, path := openTestHandler(t, slog.LevelInfo)
	logger := slog.New(h)

	logger.Error("download failed", slog.Any("error", errors.New("connection refused")))

	logs := queryLogs(t, path)
	require.Len(t, logs, 1)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(logs[0]["meta"]), &meta))
	assert.Equal(t, "connection refused", meta["error"])
}

func TestSetupFanout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	logger, closer, err := Setup(path, slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("pipeline started", slog.String("component", "cmd"))
	require.NoError(t, closer())

	logs := queryLogs(t, path)
	require.Len(t, logs, 1)
	assert.Equal(t, "pipeline started", logs[0]["message"])
}
