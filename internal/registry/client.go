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

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cardinalhq/inletrunner/config"
)

// Client fetches schemas from the external registry. Schemas are fetched
// fresh for every file; the registry is the source of truth and nothing is
// cached here.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a registry client from configuration.
func NewClient(cfg config.RegistryConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchSchemas retrieves the full list of registered schemas. Column names
// are sanitized here so every downstream consumer sees safe identifiers.
func (c *Client) FetchSchemas(ctx context.Context) ([]Schema, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/schemas", nil)
	if err != nil {
		return nil, fmt.Errorf("build schemas request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schemas: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read schemas response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch schemas: status %d", resp.StatusCode)
	}

	var wire wireSchemaList
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode schemas: %w", err)
	}

	schemas := make([]Schema, 0, len(wire.Schemas))
	for _, ws := range wire.Schemas {
		name := ws.Name
		if name == "" {
			name = "unknown_schema"
		}
		columns := make([]Column, 0, len(ws.Columns))
		for _, col := range ws.Columns {
			columns = append(columns, Column{
				Name:        SanitizeIdentifier(col.Name),
				Type:        col.Type,
				Description: col.Description,
			})
		}
		schemas = append(schemas, Schema{Name: name, Columns: columns})
	}
	return schemas, nil
}
