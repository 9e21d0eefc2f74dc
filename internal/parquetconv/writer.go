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

// Package parquetconv converts extracted rows into parquet files, building
// the parquet schema dynamically from the registry's column definitions.
package parquetconv

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/inletrunner/internal/registry"
)

// nodeForType maps a registry column type to a parquet node. Unknown types
// land on string, which every extracted value can be rendered into.
func nodeForType(colType string) parquet.Node {
	switch strings.ToLower(colType) {
	case "int", "integer", "bigint", "long":
		return parquet.Optional(parquet.Int(64))
	case "float", "double", "number", "decimal", "numeric":
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case "bool", "boolean":
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	default:
		return parquet.Optional(parquet.String())
	}
}

// SchemaFor builds a parquet schema with exactly the given columns.
func SchemaFor(name string, columns []registry.Column) *parquet.Schema {
	nodes := make(parquet.Group, len(columns))
	for _, col := range columns {
		nodes[col.Name] = nodeForType(col.Type)
	}
	return parquet.NewSchema(name, nodes)
}

// coerce converts a JSON-decoded cell into the Go type the column's parquet
// node expects. nil is returned for values that cannot be represented.
func coerce(v any, colType string) any {
	if v == nil {
		return nil
	}
	switch strings.ToLower(colType) {
	case "int", "integer", "bigint", "long":
		switch t := v.(type) {
		case float64:
			return int64(t)
		case int:
			return int64(t)
		case int64:
			return t
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n
			}
			return nil
		default:
			return nil
		}
	case "float", "double", "number", "decimal", "numeric":
		switch t := v.(type) {
		case float64:
			return t
		case int:
			return float64(t)
		case int64:
			return float64(t)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
			return nil
		default:
			return nil
		}
	case "bool", "boolean":
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b
			}
			return nil
		default:
			return nil
		}
	default:
		switch t := v.(type) {
		case string:
			return t
		default:
			return fmt.Sprint(t)
		}
	}
}

// WriteFile writes rows as a parquet file at path. Rows should already be
// normalized to the schema columns; null cells are written as parquet nulls.
func WriteFile(path, schemaName string, columns []registry.Column, rows []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	schema := SchemaFor(schemaName, columns)
	pw := parquet.NewGenericWriter[map[string]any](f, schema, parquet.Compression(&parquet.Zstd))

	for _, row := range rows {
		out := make(map[string]any, len(columns))
		for _, col := range columns {
			if cv := coerce(row[col.Name], col.Type); cv != nil {
				out[col.Name] = cv
			}
		}
		if _, err := pw.Write([]map[string]any{out}); err != nil {
			_ = pw.Close()
			_ = f.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}

	if err := pw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
