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
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/objstore"
	"github.com/cardinalhq/inletrunner/internal/router"
)

type fakeRouter struct {
	err         error
	removeLocal bool
	routed      []string
}

func (f *fakeRouter) Route(ctx context.Context, localPath, objectName string) (router.Outcome, error) {
	f.routed = append(f.routed, objectName)
	if f.removeLocal {
		_ = os.Remove(localPath)
	}
	if f.err != nil {
		return router.Outcome{}, f.err
	}
	return router.Outcome{Accepted: []string{"orders"}}, nil
}

func newTestWorker(t *testing.T, rtr FileRouter) (*Worker, objstore.Client, *Queue, config.BucketsConfig) {
	t.Helper()
	store := objstore.NewFileClient(t.TempDir())
	buckets := config.Default().Buckets
	q := NewQueue(8)
	w := NewWorker(0, store, rtr, q, buckets, 10*time.Millisecond, t.TempDir(), nil)
	return w, store, q, buckets
}

func TestWorkerPromotesProcessedObject(t *testing.T) {
	rtr := &fakeRouter{}
	w, store, _, buckets := newTestWorker(t, rtr)
	seedObject(t, store, buckets.Inbox, "report.csv", "a,b\n")
	ctx := context.Background()

	w.process(ctx, WorkItem{Bucket: buckets.Inbox, Key: "report.csv"})

	assert.Equal(t, []string{"report.csv"}, rtr.routed)

	inInbox, err := store.ObjectExists(ctx, buckets.Inbox, "report.csv")
	require.NoError(t, err)
	assert.False(t, inInbox, "object must leave the inbox after processing")

	processed, err := store.ObjectExists(ctx, buckets.Processed, "report.csv")
	require.NoError(t, err)
	assert.True(t, processed, "processed copy must be recorded")
}

func TestWorkerQuarantinesFailedObject(t *testing.T) {
	rtr := &fakeRouter{err: errors.New("no text extracted")}
	w, store, _, buckets := newTestWorker(t, rtr)
	seedObject(t, store, buckets.Inbox, "broken.pdf", "pdfbytes")
	ctx := context.Background()

	w.process(ctx, WorkItem{Bucket: buckets.Inbox, Key: "broken.pdf"})

	inInbox, err := store.ObjectExists(ctx, buckets.Inbox, "broken.pdf")
	require.NoError(t, err)
	assert.False(t, inInbox)

	quarantined, err := store.ObjectExists(ctx, buckets.Quarantine, "broken.pdf")
	require.NoError(t, err)
	assert.True(t, quarantined)

	processed, err := store.ObjectExists(ctx, buckets.Processed, "broken.pdf")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorkerRedownloadsForQuarantine(t *testing.T) {
	// The temp file disappears during processing; quarantine must fetch the
	// original again instead of giving up.
	rtr := &fakeRouter{err: errors.New("boom"), removeLocal: true}
	w, store, _, buckets := newTestWorker(t, rtr)
	seedObject(t, store, buckets.Inbox, "gone.csv", "a,b\n")
	ctx := context.Background()

	w.process(ctx, WorkItem{Bucket: buckets.Inbox, Key: "gone.csv"})

	quarantined, err := store.ObjectExists(ctx, buckets.Quarantine, "gone.csv")
	require.NoError(t, err)
	assert.True(t, quarantined)
}

func TestWorkerVanishedObject(t *testing.T) {
	rtr := &fakeRouter{}
	w, store, _, buckets := newTestWorker(t, rtr)
	require.NoError(t, store.EnsureBucket(context.Background(), buckets.Inbox))

	w.process(context.Background(), WorkItem{Bucket: buckets.Inbox, Key: "never-was.csv"})
	assert.Empty(t, rtr.routed)
}

func TestWorkerDrainsQueueAfterCancel(t *testing.T) {
	rtr := &fakeRouter{}
	w, store, q, buckets := newTestWorker(t, rtr)
	for _, key := range []string{"a.csv", "b.csv", "c.csv"} {
		seedObject(t, store, buckets.Inbox, key, "x\n")
		require.NoError(t, q.Push(context.Background(), WorkItem{Bucket: buckets.Inbox, Key: key}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not drain and stop")
	}

	assert.ElementsMatch(t, []string{"a.csv", "b.csv", "c.csv"}, rtr.routed)
	q.Wait() // all items acknowledged
}
