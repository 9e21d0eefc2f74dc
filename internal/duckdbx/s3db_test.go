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

package duckdbx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/inletrunner/config"
)

func TestBuildS3SecretSQL(t *testing.T) {
	cfg := config.StorageConfig{
		Endpoint:  "http://minio:9000",
		AccessKey: "minioadmin",
		SecretKey: "it's-a-secret",
		Region:    "us-east-1",
		URLStyle:  "path",
	}

	ddl, err := buildS3SecretSQL(cfg, "my-input")
	require.NoError(t, err)

	assert.Contains(t, ddl, `CREATE OR REPLACE SECRET "secret_my_input"`)
	assert.Contains(t, ddl, "ENDPOINT 'minio:9000'")
	assert.Contains(t, ddl, "USE_SSL 'false'")
	assert.Contains(t, ddl, "URL_STYLE 'path'")
	// single quotes in values must be doubled
	assert.Contains(t, ddl, "SECRET 'it''s-a-secret'")
	assert.Contains(t, ddl, "SCOPE 's3://my-input'")
}

func TestBuildS3SecretSQLDefaultsEndpoint(t *testing.T) {
	cfg := config.StorageConfig{
		AccessKey: "key",
		SecretKey: "secret",
		Region:    "eu-west-1",
	}
	ddl, err := buildS3SecretSQL(cfg, "bucket")
	require.NoError(t, err)
	assert.Contains(t, ddl, "ENDPOINT 's3.eu-west-1.amazonaws.com'")
	assert.Contains(t, ddl, "USE_SSL 'true'")
	assert.Contains(t, ddl, "REGION 'eu-west-1'")
}

func TestBuildS3SecretSQLRequiresCredentials(t *testing.T) {
	_, err := buildS3SecretSQL(config.StorageConfig{}, "bucket")
	require.Error(t, err)
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, "it''s", escapeSingle("it's"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
