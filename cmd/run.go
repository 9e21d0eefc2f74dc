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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/aiclient"
	"github.com/cardinalhq/inletrunner/internal/auditlog"
	"github.com/cardinalhq/inletrunner/internal/duckdbx"
	"github.com/cardinalhq/inletrunner/internal/durable"
	"github.com/cardinalhq/inletrunner/internal/objstore"
	"github.com/cardinalhq/inletrunner/internal/pipeline"
	"github.com/cardinalhq/inletrunner/internal/registry"
	"github.com/cardinalhq/inletrunner/internal/router"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion pipeline until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, closeAudit, err := auditlog.Setup(cfg.Audit.DBPath, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer func() { _ = closeAudit() }()
	slog.SetDefault(logger)

	tmpdir, err := os.MkdirTemp("", "inletrunner-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpdir) }()

	store, err := objstore.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect to object storage: %w", err)
	}
	for _, bucket := range cfg.Buckets.All() {
		if bucket == "" {
			continue
		}
		if err := store.EnsureBucket(ctx, bucket); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
	}
	logger.Info("buckets ready", slog.Any("buckets", cfg.Buckets.All()))

	db := duckdbx.New(cfg.Storage)
	defer func() { _ = db.Close() }()

	sink := durable.NewWriter(durable.NewDuckDBRemote(db, tmpdir), store, tmpdir, logger)
	schemas := registry.NewClient(cfg.Registry)
	ai := aiclient.NewClient(cfg.Services, logger)
	rtr := router.New(schemas, ai, sink, store, cfg.Buckets, cfg.Pipeline, tmpdir, logger)

	err = pipeline.Run(ctx, cfg, store, rtr, tmpdir, logger)
	logger.Info("shutdown complete")
	return err
}
