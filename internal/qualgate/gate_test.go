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

package qualgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowsWithNulls builds total rows where the "v" column is null in the first
// nulls of them.
func rowsWithNulls(total, nulls int) []map[string]any {
	rows := make([]map[string]any, total)
	for i := range rows {
		if i < nulls {
			rows[i] = map[string]any{"v": nil}
		} else {
			rows[i] = map[string]any{"v": float64(i)}
		}
	}
	return rows
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	cols := []string{"v"}

	// Exactly at the threshold: accepted (comparison is strictly greater).
	v := Evaluate(rowsWithNulls(10000, 7500), cols, 0.75)
	assert.True(t, v.Accepted)
	assert.InDelta(t, 0.75, v.NullRatios["v"], 1e-9)

	// One row over: rejected.
	v = Evaluate(rowsWithNulls(10000, 7501), cols, 0.75)
	assert.False(t, v.Accepted)
	assert.Contains(t, v.Reason, "v")
}

func TestEvaluateNoRows(t *testing.T) {
	v := Evaluate(nil, []string{"a", "b"}, 0.75)
	assert.False(t, v.Accepted)
	assert.Equal(t, "no rows", v.Reason)
	assert.Zero(t, v.TotalRows)
}

func TestEvaluateMissingKeysCountAsNull(t *testing.T) {
	rows := []map[string]any{
		{"a": "x"},            // b missing
		{"a": "y", "b": nil},  // b null
		{"a": "z", "b": ""},   // b empty string
		{"a": "w", "b": "ok"}, // b populated
	}
	v := Evaluate(rows, []string{"a", "b"}, 0.75)
	require.True(t, v.Accepted)
	assert.InDelta(t, 0.0, v.NullRatios["a"], 1e-9)
	assert.InDelta(t, 0.75, v.NullRatios["b"], 1e-9)
}

func TestEvaluateAcceptedScenario(t *testing.T) {
	// One numeric column populated in 9 of 10 rows: 10% null, accepted.
	rows := rowsWithNulls(10, 1)
	v := Evaluate(rows, []string{"v"}, 0.75)
	assert.True(t, v.Accepted)
	assert.Equal(t, 10, v.TotalRows)
	assert.InDelta(t, 0.1, v.NullRatios["v"], 1e-9)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	rows := []map[string]any{
		{"a": nil, "b": nil, "c": "x"},
	}
	first := Evaluate(rows, []string{"a", "b", "c"}, 0.5)
	for range 5 {
		assert.Equal(t, first, Evaluate(rows, []string{"a", "b", "c"}, 0.5))
	}
	assert.Equal(t, "null ratio above 0.50 for columns: a, b", first.Reason)
}

func TestNormalize(t *testing.T) {
	rows := []map[string]any{
		{"a": 1.0, "extra": "dropped"},
		{"b": "kept", "a": ""},
	}
	got := Normalize(rows, []string{"a", "b"})
	require.Len(t, got, 2)
	assert.Equal(t, map[string]any{"a": 1.0, "b": nil}, got[0])
	assert.Equal(t, map[string]any{"a": nil, "b": "kept"}, got[1])
}
