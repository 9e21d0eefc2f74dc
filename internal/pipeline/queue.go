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

// Package pipeline connects the inbox watcher to the worker pool through a
// tracked work queue and supervises both until shutdown.
package pipeline

import (
	"context"
	"sync"
	"time"
)

// WorkItem is one inbox object queued for processing.
type WorkItem struct {
	Bucket string
	Key    string
	Size   int64
}

// Queue is a bounded work queue with completion tracking. Every pushed item
// must be acknowledged exactly once; Wait blocks until all pushed items have
// been acknowledged.
type Queue struct {
	ch chan WorkItem
	wg sync.WaitGroup
}

// NewQueue returns a queue holding at most capacity pending items.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan WorkItem, capacity)}
}

// Push enqueues an item, blocking while the queue is full.
func (q *Queue) Push(ctx context.Context, item WorkItem) error {
	q.wg.Add(1)
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		q.wg.Done()
		return ctx.Err()
	}
}

// Pop waits up to timeout for an item. The second return is false when the
// timeout elapses with the queue empty.
func (q *Queue) Pop(timeout time.Duration) (WorkItem, bool) {
	select {
	case item := <-q.ch:
		return item, true
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case item := <-q.ch:
		return item, true
	case <-t.C:
		return WorkItem{}, false
	}
}

// Ack marks one popped item as fully handled.
func (q *Queue) Ack() { q.wg.Done() }

// Wait blocks until every pushed item has been acknowledged.
func (q *Queue) Wait() { q.wg.Wait() }

// Len reports items queued but not yet popped.
func (q *Queue) Len() int { return len(q.ch) }
