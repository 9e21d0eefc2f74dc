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

// Package qualgate decides whether extracted rows are good enough to keep.
// The verdict is a pure function of the rows, the schema columns and the
// null-ratio threshold; no I/O happens here.
package qualgate

import (
	"fmt"
	"sort"
	"strings"
)

// Verdict is the outcome of evaluating one extraction against one schema.
type Verdict struct {
	TotalRows  int
	NullRatios map[string]float64
	Accepted   bool
	Reason     string
}

// isNull reports whether a cell counts as missing: absent key, JSON null,
// or an empty string.
func isNull(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

// Normalize projects rows onto exactly the given columns, in order. Missing
// keys become explicit nils so every row has the same shape.
func Normalize(rows []map[string]any, columns []string) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		nr := make(map[string]any, len(columns))
		for _, col := range columns {
			v, ok := row[col]
			if isNull(v, ok) {
				nr[col] = nil
				continue
			}
			nr[col] = v
		}
		out[i] = nr
	}
	return out
}

// Evaluate computes per-column null ratios over rows and accepts unless any
// column's ratio is strictly above threshold. Zero rows always reject.
func Evaluate(rows []map[string]any, columns []string, threshold float64) Verdict {
	v := Verdict{
		TotalRows:  len(rows),
		NullRatios: make(map[string]float64, len(columns)),
	}

	if len(rows) == 0 {
		v.Reason = "no rows"
		return v
	}

	var bad []string
	for _, col := range columns {
		nulls := 0
		for _, row := range rows {
			cell, ok := row[col]
			if isNull(cell, ok) {
				nulls++
			}
		}
		ratio := float64(nulls) / float64(len(rows))
		v.NullRatios[col] = ratio
		if ratio > threshold {
			bad = append(bad, col)
		}
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		v.Reason = fmt.Sprintf("null ratio above %.2f for columns: %s", threshold, strings.Join(bad, ", "))
		return v
	}

	v.Accepted = true
	return v
}
