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
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/objstore"
)

// ChangeSource yields the objects currently visible in the watched
// location. The polling bucket listing below is the only implementation
// today; a push-based source can replace it without touching the workers.
type ChangeSource interface {
	Changes(ctx context.Context) ([]objstore.ObjectInfo, error)
}

// BucketSource adapts a bucket listing into a ChangeSource.
type BucketSource struct {
	store  objstore.Client
	bucket string
}

// NewBucketSource returns a ChangeSource listing the given bucket.
func NewBucketSource(store objstore.Client, bucket string) *BucketSource {
	return &BucketSource{store: store, bucket: bucket}
}

func (s *BucketSource) Changes(ctx context.Context) ([]objstore.ObjectInfo, error) {
	return s.store.ListObjects(ctx, s.bucket, "")
}

// Watcher polls the inbox location and enqueues every object it has not
// already handed to the workers. Dedup is in-memory only; across restarts
// the processed-location check below keeps already-finished files out.
type Watcher struct {
	source   ChangeSource
	store    objstore.Client
	queue    *Queue
	buckets  config.BucketsConfig
	interval time.Duration
	seen     mapset.Set[string]
	logger   *slog.Logger
}

// NewWatcher wires an inbox watcher.
func NewWatcher(store objstore.Client, queue *Queue, buckets config.BucketsConfig,
	interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		source:   NewBucketSource(store, buckets.Inbox),
		store:    store,
		queue:    queue,
		buckets:  buckets,
		interval: interval,
		seen:     mapset.NewSet[string](),
		logger:   logger.With(slog.String("component", "watcher")),
	}
}

// Run polls until ctx is canceled. The first scan happens immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan lists the inbox once and enqueues new objects. Listing errors are
// logged and swallowed so a flaky store never kills the poll loop.
func (w *Watcher) scan(ctx context.Context) {
	objects, err := w.source.Changes(ctx)
	if err != nil {
		w.logger.Warn("inbox listing failed",
			slog.String("bucket", w.buckets.Inbox), slog.Any("error", err))
		return
	}

	for _, obj := range objects {
		if w.seen.Contains(obj.Key) {
			continue
		}
		if w.alreadyProcessed(ctx, obj.Key) {
			w.seen.Add(obj.Key)
			w.logger.Info("skipping already-processed object",
				slog.String("key", obj.Key))
			continue
		}

		item := WorkItem{Bucket: w.buckets.Inbox, Key: obj.Key, Size: obj.Size}
		if err := w.queue.Push(ctx, item); err != nil {
			return
		}
		w.seen.Add(obj.Key)
		w.logger.Info("queued inbox object",
			slog.String("key", obj.Key), slog.Int64("size", obj.Size))
	}
}

// alreadyProcessed is a restart heuristic: an object with a copy under the
// processed location was finished in an earlier run. Stat errors count as
// "not processed" so a flaky check never drops work.
func (w *Watcher) alreadyProcessed(ctx context.Context, key string) bool {
	exists, err := w.store.ObjectExists(ctx, w.buckets.Processed, key)
	return err == nil && exists
}
