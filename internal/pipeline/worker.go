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
	"os"
	"time"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/objstore"
	"github.com/cardinalhq/inletrunner/internal/router"
)

// FileRouter processes one downloaded file end to end.
type FileRouter interface {
	Route(ctx context.Context, localPath, objectName string) (router.Outcome, error)
}

// Worker pops items off the queue and drives each through the router,
// then moves the original out of the inbox: to the processed location on
// success, to quarantine on failure.
type Worker struct {
	id         int
	store      objstore.Client
	router     FileRouter
	queue      *Queue
	buckets    config.BucketsConfig
	popTimeout time.Duration
	tmpdir     string
	logger     *slog.Logger
}

// NewWorker wires one pipeline worker.
func NewWorker(id int, store objstore.Client, rtr FileRouter, queue *Queue,
	buckets config.BucketsConfig, popTimeout time.Duration, tmpdir string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:         id,
		store:      store,
		router:     rtr,
		queue:      queue,
		buckets:    buckets,
		popTimeout: popTimeout,
		tmpdir:     tmpdir,
		logger:     logger.With(slog.String("component", "worker"), slog.Int("worker", id)),
	}
}

// Run pops work until ctx is canceled AND the queue is empty: items already
// enqueued at shutdown are still processed to completion before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	for {
		item, ok := w.queue.Pop(w.popTimeout)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			default:
				continue
			}
		}
		w.process(ctx, item)
		w.queue.Ack()
	}
}

// process handles one item. In-flight work finishes even when the parent
// context is canceled; the item is always acknowledged by the caller.
func (w *Worker) process(ctx context.Context, item WorkItem) {
	ctx = context.WithoutCancel(ctx)

	local, size, notFound, err := w.store.DownloadObject(ctx, w.tmpdir, item.Bucket, item.Key)
	if notFound {
		w.logger.Warn("inbox object vanished before download", slog.String("key", item.Key))
		return
	}
	if err != nil {
		// Left in the inbox; the next run picks it up again.
		w.logger.Error("download failed",
			slog.String("key", item.Key), slog.Any("error", err))
		return
	}
	defer func() { _ = os.Remove(local) }()

	w.logger.Info("processing inbox object",
		slog.String("key", item.Key), slog.Int64("size", size))

	out, err := w.router.Route(ctx, local, item.Key)
	if err != nil {
		w.logger.Error("processing failed, quarantining original",
			slog.String("key", item.Key), slog.Any("error", err))
		w.quarantine(ctx, item, local)
		return
	}

	w.promote(ctx, item, local)
	w.logger.Info("inbox object done",
		slog.String("key", item.Key),
		slog.Any("accepted", out.Accepted),
		slog.Any("rejected", out.Rejected))
}

// promote records the original under the processed location, then removes
// it from the inbox. The processed copy is written first so a crash between
// the two steps re-processes rather than loses the file.
func (w *Worker) promote(ctx context.Context, item WorkItem, local string) {
	if err := w.store.UploadObject(ctx, w.buckets.Processed, item.Key, local); err != nil {
		w.logger.Error("record processed copy",
			slog.String("key", item.Key), slog.Any("error", err))
		return
	}
	if err := w.store.DeleteObject(ctx, item.Bucket, item.Key); err != nil {
		w.logger.Error("remove processed object from inbox",
			slog.String("key", item.Key), slog.Any("error", err))
	}
}

// quarantine copies the original object to the quarantine location and then
// removes it from the inbox. If the local temp file is already gone it is
// fetched again first. The inbox delete only happens after a successful
// quarantine copy.
func (w *Worker) quarantine(ctx context.Context, item WorkItem, local string) {
	if _, err := os.Stat(local); err != nil {
		refetched, _, notFound, err := w.store.DownloadObject(ctx, w.tmpdir, item.Bucket, item.Key)
		if notFound || err != nil {
			w.logger.Error("re-download for quarantine failed",
				slog.String("key", item.Key), slog.Any("error", err))
			return
		}
		local = refetched
		defer func() { _ = os.Remove(refetched) }()
	}

	if err := w.store.UploadObject(ctx, w.buckets.Quarantine, item.Key, local); err != nil {
		w.logger.Error("quarantine copy failed, leaving object in inbox",
			slog.String("key", item.Key), slog.Any("error", err))
		return
	}
	if err := w.store.DeleteObject(ctx, item.Bucket, item.Key); err != nil {
		w.logger.Error("remove quarantined object from inbox",
			slog.String("key", item.Key), slog.Any("error", err))
		return
	}
	w.logger.Info("original quarantined", slog.String("key", item.Key))
}
