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

package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/objstore"
)

// Run supervises one watcher and the configured number of workers until ctx
// is canceled, then waits for every enqueued item to be acknowledged before
// returning.
func Run(ctx context.Context, cfg *config.Config, store objstore.Client, rtr FileRouter, tmpdir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	queue := NewQueue(0)
	watcher := NewWatcher(store, queue, cfg.Buckets, cfg.Pipeline.PollInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })

	workers := cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		w := NewWorker(i, store, rtr, queue, cfg.Buckets, cfg.Pipeline.PopTimeout, tmpdir, logger)
		g.Go(func() error { return w.Run(gctx) })
	}

	logger.Info("pipeline started",
		slog.Int("workers", workers),
		slog.String("inbox", cfg.Buckets.Inbox))

	err := g.Wait()
	queue.Wait()
	logger.Info("pipeline drained")
	return err
}
