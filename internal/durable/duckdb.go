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

package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cardinalhq/inletrunner/internal/duckdbx"
	"github.com/cardinalhq/inletrunner/internal/registry"
)

// DuckDBRemote writes parquet straight to object storage through DuckDB's
// httpfs integration. Rows are staged to a local NDJSON file, then copied
// out in one statement with explicit column types.
type DuckDBRemote struct {
	db     *duckdbx.S3DB
	tmpdir string
}

// NewDuckDBRemote returns the engine-backed primary write path.
func NewDuckDBRemote(db *duckdbx.S3DB, tmpdir string) *DuckDBRemote {
	return &DuckDBRemote{db: db, tmpdir: tmpdir}
}

var _ RemoteWriter = (*DuckDBRemote)(nil)

func duckdbTypeFor(colType string) string {
	switch strings.ToLower(colType) {
	case "int", "integer", "bigint", "long":
		return "BIGINT"
	case "float", "double", "number", "decimal", "numeric":
		return "DOUBLE"
	case "bool", "boolean":
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// WriteParquet stages rows to NDJSON and copies them to s3://bucket/key as
// parquet inside the engine.
func (r *DuckDBRemote) WriteParquet(ctx context.Context, bucket, key string, columns []registry.Column, rows []map[string]any) error {
	stage := filepath.Join(r.tmpdir, uuid.NewString()+".ndjson")
	if err := writeNDJSON(stage, rows); err != nil {
		return err
	}
	defer func() { _ = os.Remove(stage) }()

	conn, release, err := r.db.Acquire(ctx, bucket)
	if err != nil {
		return err
	}
	defer release()

	sql := buildCopySQL(stage, bucket, key, columns)
	if _, err := conn.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("copy to s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func writeNDJSON(path string, rows []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stage file: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode stage row: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close stage file: %w", err)
	}
	return nil
}

// buildCopySQL selects the schema columns, typed, out of the staged NDJSON
// and copies them to the destination as parquet. Explicit column types keep
// the engine from inferring a different shape per file.
func buildCopySQL(stagePath, bucket, key string, columns []registry.Column) string {
	var sel strings.Builder
	var spec strings.Builder
	for i, col := range columns {
		if i > 0 {
			sel.WriteString(", ")
			spec.WriteString(", ")
		}
		sel.WriteString(quoteIdent(col.Name))
		_, _ = fmt.Fprintf(&spec, "%s: '%s'", quoteIdent(col.Name), duckdbTypeFor(col.Type))
	}

	return fmt.Sprintf(
		"COPY (SELECT %s FROM read_json('%s', format='newline_delimited', columns={%s})) TO '%s' (FORMAT PARQUET);",
		sel.String(),
		escapeSingle(stagePath),
		spec.String(),
		escapeSingle(fmt.Sprintf("s3://%s/%s", bucket, key)),
	)
}

func escapeSingle(s string) string { return strings.ReplaceAll(s, `'`, `''`) }
func quoteIdent(s string) string   { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
