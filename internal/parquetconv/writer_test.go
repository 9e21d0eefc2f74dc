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

package parquetconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/inletrunner/internal/registry"
)

var testColumns = []registry.Column{
	{Name: "customer", Type: "string"},
	{Name: "amount", Type: "float"},
	{Name: "items", Type: "int"},
	{Name: "paid", Type: "bool"},
}

func TestWriteFileRoundTrip(t *testing.T) {
	rows := []map[string]any{
		{"customer": "Alice", "amount": 12.5, "items": float64(3), "paid": true},
		{"customer": "Bob", "amount": nil, "items": float64(1), "paid": false},
		{"customer": nil, "amount": 7.0, "items": nil, "paid": nil},
	}

	path := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, WriteFile(path, "orders", testColumns, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, st.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(3), pf.NumRows())

	reader := parquet.NewGenericReader[map[string]any](f, pf.Schema())
	defer func() { _ = reader.Close() }()
	got := make([]map[string]any, 3)
	for i := range got {
		got[i] = map[string]any{}
	}
	n, _ := reader.Read(got)
	require.Equal(t, 3, n)

	assert.Equal(t, "Alice", got[0]["customer"])
	assert.Equal(t, 12.5, got[0]["amount"])
	assert.Equal(t, int64(3), got[0]["items"])
	assert.Equal(t, true, got[0]["paid"])
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		v       any
		colType string
		want    any
	}{
		{float64(3), "int", int64(3)},
		{"42", "int", int64(42)},
		{"not a number", "int", nil},
		{float64(1.5), "float", 1.5},
		{"2.25", "float", 2.25},
		{true, "bool", true},
		{"true", "bool", true},
		{"yes", "bool", nil},
		{"plain", "string", "plain"},
		{float64(3.5), "string", "3.5"},
		{nil, "string", nil},
		{"anything", "unknown type", "anything"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerce(tt.v, tt.colType), "coerce(%v, %q)", tt.v, tt.colType)
	}
}

func TestWriteFileEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteFile(path, "orders", testColumns, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, st.Size())
	require.NoError(t, err)
	assert.Zero(t, pf.NumRows())
}
