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

// Package router drives one file through the pipeline: content extraction,
// translation, per-schema structuring, the quality gate, and the durable
// write or quarantine of each schema's result.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/objstore"
	"github.com/cardinalhq/inletrunner/internal/qualgate"
	"github.com/cardinalhq/inletrunner/internal/registry"
)

// ErrNoSchemas aborts routing when the registry has nothing to match
// against.
var ErrNoSchemas = errors.New("no schemas registered")

// SchemaSource supplies the registered target schemas.
type SchemaSource interface {
	FetchSchemas(ctx context.Context) ([]registry.Schema, error)
}

// Extractor is the set of remote extraction collaborators.
type Extractor interface {
	OCR(ctx context.Context, filePath string) (string, error)
	Transcribe(ctx context.Context, filePath string) (string, error)
	Translate(ctx context.Context, text string) (string, error)
	ExtractRows(ctx context.Context, text string, columns []registry.Column) ([]map[string]any, error)
}

// RowSink persists accepted rows at a destination key.
type RowSink interface {
	Write(ctx context.Context, bucket, key, schemaName string, columns []registry.Column, rows []map[string]any) error
}

// Outcome is the tagged result of routing one file. A returned error means
// the file failed and must be quarantined by the caller; an Outcome with no
// error means the file is done and can leave the inbox, regardless of how
// many schemas were rejected.
type Outcome struct {
	Accepted []string // schemas whose rows passed the gate and were written
	Rejected []string // schemas whose rows failed the gate
}

// Router routes one downloaded file through every registered schema.
type Router struct {
	schemas SchemaSource
	ai      Extractor
	sink    RowSink
	store   objstore.Client

	buckets     config.BucketsConfig
	threshold   float64
	schemaDelay time.Duration
	tmpdir      string
	logger      *slog.Logger
}

// New wires a Router.
func New(schemas SchemaSource, ai Extractor, sink RowSink, store objstore.Client,
	buckets config.BucketsConfig, pcfg config.PipelineConfig, tmpdir string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		schemas:     schemas,
		ai:          ai,
		sink:        sink,
		store:       store,
		buckets:     buckets,
		threshold:   pcfg.NullRatioThreshold,
		schemaDelay: pcfg.SchemaDelay,
		tmpdir:      tmpdir,
		logger:      logger.With(slog.String("component", "router")),
	}
}

// Route processes one file end to end. The schema list is fetched fresh for
// every file; every registered schema is tried, and one schema's rejection
// never stops the rest.
func (r *Router) Route(ctx context.Context, localPath, objectName string) (Outcome, error) {
	var out Outcome

	text, err := r.extractText(ctx, localPath, objectName)
	if err != nil {
		return out, err
	}
	r.logger.Info("content extracted",
		slog.String("file", objectName), slog.Int("chars", len(text)))

	// An empty extraction skips translation; downstream schema extraction
	// then operates on empty text.
	translated := ""
	if text != "" {
		translated, err = r.ai.Translate(ctx, text)
		if err != nil {
			return out, err
		}
		r.logger.Info("translated", slog.String("file", objectName))
	}

	schemas, err := r.schemas.FetchSchemas(ctx)
	if err != nil {
		return out, err
	}
	if len(schemas) == 0 {
		return out, ErrNoSchemas
	}

	for i, sch := range schemas {
		if i > 0 && r.schemaDelay > 0 {
			// courtesy pause for the extraction collaborator
			time.Sleep(r.schemaDelay)
		}

		rows, err := r.ai.ExtractRows(ctx, translated, sch.Columns)
		if err != nil {
			return out, err
		}

		verdict := qualgate.Evaluate(rows, sch.ColumnNames(), r.threshold)
		if !verdict.Accepted {
			r.logger.Warn("schema rejected by quality gate",
				slog.String("file", objectName),
				slog.String("schema", sch.Name),
				slog.String("reason", verdict.Reason),
				slog.Int("rows", verdict.TotalRows))
			r.quarantineExtraction(ctx, objectName, sch, rows)
			out.Rejected = append(out.Rejected, sch.Name)
			continue
		}

		normalized := qualgate.Normalize(rows, sch.ColumnNames())
		destKey := destinationKey(objectName)
		if err := r.sink.Write(ctx, r.buckets.Accepted, destKey, sch.Name, sch.Columns, normalized); err != nil {
			return out, err
		}

		r.logger.Info("schema accepted and stored",
			slog.String("file", objectName),
			slog.String("schema", sch.Name),
			slog.String("key", destKey),
			slog.Int("rows", verdict.TotalRows))
		out.Accepted = append(out.Accepted, sch.Name)
	}

	return out, nil
}

// quarantineExtraction persists the full rejected payload as JSON under the
// quarantine location. Best-effort: a failed upload is logged, not fatal.
func (r *Router) quarantineExtraction(ctx context.Context, objectName string, sch registry.Schema, rows []map[string]any) {
	payload := map[string]any{
		"schema":  sch.Name,
		"columns": sch.ColumnNames(),
		"rows":    rows,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		r.logger.Error("encode rejected extraction",
			slog.String("file", objectName), slog.Any("error", err))
		return
	}

	tmp := filepath.Join(r.tmpdir, uuid.NewString()+".json")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.logger.Error("stage rejected extraction",
			slog.String("file", objectName), slog.Any("error", err))
		return
	}
	defer func() { _ = os.Remove(tmp) }()

	key := strings.TrimSuffix(objectName, filepath.Ext(objectName)) + ".extracted.json"
	if err := r.store.UploadObject(ctx, r.buckets.Quarantine, key, tmp); err != nil {
		r.logger.Error("upload rejected extraction to quarantine",
			slog.String("file", objectName),
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// destinationKey maps an inbox object name onto its accepted-location key,
// keeping any path prefix and swapping the extension for .parquet.
func destinationKey(objectName string) string {
	return strings.TrimSuffix(objectName, filepath.Ext(objectName)) + ".parquet"
}
