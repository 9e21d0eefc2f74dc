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

// Package duckdbx manages the embedded DuckDB session the durable writer
// uses for direct parquet writes to object storage.
package duckdbx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/cardinalhq/inletrunner/config"
)

// S3DB owns one in-memory DuckDB instance with the httpfs extension and a
// per-bucket S3 secret. Engines of this class are single-writer friendly
// only, so a mutex serializes every handout across workers.
type S3DB struct {
	storage config.StorageConfig

	mu      sync.Mutex
	db      *sql.DB
	conn    *sql.Conn
	seeded  map[string]bool
	initErr error
}

// New returns an S3DB; the engine is opened lazily on first Acquire.
func New(storage config.StorageConfig) *S3DB {
	return &S3DB{
		storage: storage,
		seeded:  make(map[string]bool),
	}
}

// Acquire hands out the engine connection with a secret in place for the
// given bucket. The returned release func must be called when done; the
// connection is exclusive until then.
func (s *S3DB) Acquire(ctx context.Context, bucket string) (*sql.Conn, func(), error) {
	if bucket == "" {
		return nil, nil, fmt.Errorf("bucket is required")
	}
	s.mu.Lock()

	if err := s.ensureConn(ctx); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if !s.seeded[bucket] {
		if err := s.seedS3Secret(ctx, bucket); err != nil {
			s.mu.Unlock()
			return nil, nil, err
		}
		s.seeded[bucket] = true
	}

	return s.conn, func() { s.mu.Unlock() }, nil
}

// Close tears the engine down. Callers must not hold an acquired connection.
func (s *S3DB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// ensureConn opens the in-memory database and loads httpfs once. A failed
// init is sticky; the engine will not be retried within this process.
func (s *S3DB) ensureConn(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	if s.conn != nil {
		return nil
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		s.initErr = fmt.Errorf("open duckdb: %w", err)
		return s.initErr
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		s.initErr = fmt.Errorf("duckdb connection: %w", err)
		return s.initErr
	}

	for _, stmt := range []string{"INSTALL httpfs;", "LOAD httpfs;"} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			_ = db.Close()
			s.initErr = fmt.Errorf("%s: %w", strings.TrimSuffix(stmt, ";"), err)
			return s.initErr
		}
	}

	s.db = db
	s.conn = conn
	return nil
}

// seedS3Secret creates a scoped S3 secret for the bucket from the storage
// configuration, covering MinIO-style custom endpoints.
func (s *S3DB) seedS3Secret(ctx context.Context, bucket string) error {
	ddl, err := buildS3SecretSQL(s.storage, bucket)
	if err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("seed s3 secret for %s: %w", bucket, err)
	}
	return nil
}

func buildS3SecretSQL(cfg config.StorageConfig, bucket string) (string, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return "", fmt.Errorf("missing object store credentials for duckdb secret")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := cfg.Endpoint
	useSSL := "true"
	if endpoint == "" {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", region)
	} else {
		if strings.HasPrefix(endpoint, "http://") {
			endpoint = strings.TrimPrefix(endpoint, "http://")
			useSSL = "false"
		} else if strings.HasPrefix(endpoint, "https://") {
			endpoint = strings.TrimPrefix(endpoint, "https://")
		}
	}

	urlStyle := cfg.URLStyle
	if urlStyle == "" {
		urlStyle = "path"
	}

	secretName := "secret_" + strings.ReplaceAll(bucket, "-", "_")

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "CREATE OR REPLACE SECRET %s (\n", quoteIdent(secretName))
	_, _ = fmt.Fprintf(&b, "  TYPE S3,\n")
	_, _ = fmt.Fprintf(&b, "  ENDPOINT '%s',\n", escapeSingle(endpoint))
	_, _ = fmt.Fprintf(&b, "  URL_STYLE '%s',\n", escapeSingle(urlStyle))
	_, _ = fmt.Fprintf(&b, "  USE_SSL '%s',\n", escapeSingle(useSSL))
	_, _ = fmt.Fprintf(&b, "  KEY_ID '%s',\n", escapeSingle(cfg.AccessKey))
	_, _ = fmt.Fprintf(&b, "  SECRET '%s',\n", escapeSingle(cfg.SecretKey))
	_, _ = fmt.Fprintf(&b, "  REGION '%s',\n", escapeSingle(region))
	_, _ = fmt.Fprintf(&b, "  SCOPE 's3://%s'\n", escapeSingle(bucket))
	_, _ = fmt.Fprintf(&b, ");")

	return b.String(), nil
}

func escapeSingle(s string) string { return strings.ReplaceAll(s, `'`, `''`) }
func quoteIdent(s string) string   { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
