// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/metrics"
	"github.com/hearthlog/hearthlog/internal/models"
)

const (
	defaultQueueCapacity = 10000
	defaultEnqueueWait   = 100 * time.Millisecond
)

// Queue is the bounded buffer between the single-threaded socket read loop
// and the worker pool. Enqueue applies a bounded wait when the queue is
// full and then drops the event: backpressure beyond the ceiling is lossy
// on purpose, so the read loop can never be wedged by a slow sink.
type Queue struct {
	ch        chan *models.StateChange
	wait      time.Duration
	overflows atomic.Int64
}

// NewQueue creates a queue with the given capacity and producer-side wait
// ceiling. Zero values pick the defaults (10000, 100ms).
func NewQueue(capacity int, wait time.Duration) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if wait <= 0 {
		wait = defaultEnqueueWait
	}
	return &Queue{
		ch:   make(chan *models.StateChange, capacity),
		wait: wait,
	}
}

// Enqueue offers one event to the queue. Returns false when the queue
// stayed full past the wait ceiling and the event was dropped; the drop is
// counted and logged at low severity.
func (q *Queue) Enqueue(ev *models.StateChange) bool {
	select {
	case q.ch <- ev:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return true
	default:
	}

	timer := time.NewTimer(q.wait)
	defer timer.Stop()
	select {
	case q.ch <- ev:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return true
	case <-timer.C:
		dropped := q.overflows.Add(1)
		metrics.QueueOverflows.Inc()
		logging.Debug().
			Str("entity_id", ev.EntityID).
			Int64("total_dropped", dropped).
			Msg("ingest queue full, event dropped")
		return false
	}
}

// Dequeue blocks until an event is available or the context ends.
func (q *Queue) Dequeue(ctx context.Context) (*models.StateChange, bool) {
	select {
	case ev := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return ev, true
	case <-ctx.Done():
		return nil, false
	}
}

// Depth returns the current number of buffered events.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Overflows returns the total number of dropped events.
func (q *Queue) Overflows() int64 {
	return q.overflows.Load()
}
