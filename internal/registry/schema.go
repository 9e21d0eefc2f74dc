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

// Package registry fetches the registered target schemas that every file is
// matched against. Schemas are validated and their column names sanitized
// once, at fetch time.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Column is one target column of a schema.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Schema is a named, ordered list of columns.
type Schema struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// The registry serves columns as a JSON object keyed by column name. Object
// key order is meaningful here (it is the column order), so the decode walks
// tokens instead of letting encoding/json shuffle them through a map.
type orderedColumns []Column

func (oc *orderedColumns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("columns: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("columns: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("columns: expected key, got %v", keyTok)
		}
		var def struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		}
		if err := dec.Decode(&def); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		*oc = append(*oc, Column{Name: name, Type: def.Type, Description: def.Description})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	return nil
}

type wireSchema struct {
	Name    string         `json:"name"`
	Columns orderedColumns `json:"columns"`
}

type wireSchemaList struct {
	Schemas []wireSchema `json:"schemas"`
}
