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

// Package durable persists accepted rows as parquet at their destination
// key. The primary path writes directly to object storage through the
// embedded engine; when that fails for any reason the rows are serialized
// to a local parquet file and uploaded through the object store client.
package durable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cardinalhq/inletrunner/internal/objstore"
	"github.com/cardinalhq/inletrunner/internal/parquetconv"
	"github.com/cardinalhq/inletrunner/internal/registry"
)

// RemoteWriter is the primary write path: a direct remote parquet write.
type RemoteWriter interface {
	WriteParquet(ctx context.Context, bucket, key string, columns []registry.Column, rows []map[string]any) error
}

// Writer persists accepted rows, falling back from the remote engine write
// to a local-file-then-upload path.
type Writer struct {
	remote RemoteWriter
	store  objstore.Client
	tmpdir string
	logger *slog.Logger
}

// NewWriter wires a durable writer. tmpdir holds fallback scratch files.
func NewWriter(remote RemoteWriter, store objstore.Client, tmpdir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		remote: remote,
		store:  store,
		tmpdir: tmpdir,
		logger: logger.With(slog.String("component", "durable")),
	}
}

// Write persists rows as parquet at bucket/key. Failure of both the remote
// and the fallback path is returned as a single joined error; the caller
// treats it as fatal for the file.
func (w *Writer) Write(ctx context.Context, bucket, key, schemaName string, columns []registry.Column, rows []map[string]any) error {
	primaryErr := w.remote.WriteParquet(ctx, bucket, key, columns, rows)
	if primaryErr == nil {
		w.logger.Info("wrote parquet via engine",
			slog.String("bucket", bucket), slog.String("key", key), slog.Int("rows", len(rows)))
		return nil
	}

	w.logger.Warn("engine write failed, falling back to local upload",
		slog.String("bucket", bucket), slog.String("key", key), slog.Any("error", primaryErr))

	tmp := filepath.Join(w.tmpdir, uuid.NewString()+".parquet")
	defer func() { _ = os.Remove(tmp) }()

	if err := parquetconv.WriteFile(tmp, schemaName, columns, rows); err != nil {
		return fmt.Errorf("durable write failed: %w", errors.Join(primaryErr, err))
	}
	if err := w.store.UploadObject(ctx, bucket, key, tmp); err != nil {
		return fmt.Errorf("durable write failed: %w", errors.Join(primaryErr, err))
	}

	w.logger.Info("wrote parquet via fallback upload",
		slog.String("bucket", bucket), slog.String("key", key), slog.Int("rows", len(rows)))
	return nil
}
