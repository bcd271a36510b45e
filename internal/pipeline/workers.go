// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/metrics"
	"github.com/hearthlog/hearthlog/internal/models"
)

const (
	defaultWorkerCount = 10
	defaultRateLimit   = 1000
	statsWindow        = 1000
)

// EventSink receives events from the worker pool. Implemented by the
// accumulator.
type EventSink interface {
	Add(ctx context.Context, ev *models.StateChange)
}

// WorkerPool drains the ingest queue with a fixed number of workers. Each
// worker pulls one event at a time, passes it through the shared token
// bucket, and hands it to the sink. Draining in parallel deliberately gives
// up global and per-entity ordering in exchange for throughput.
type WorkerPool struct {
	queue   *Queue
	sink    EventSink
	limiter *rate.Limiter
	workers int
	stats   *rollingStats
}

// NewWorkerPool creates a pool. Zero workers or rate pick the defaults
// (10 workers, 1000 events/s).
func NewWorkerPool(queue *Queue, sink EventSink, workers, eventsPerSecond int) *WorkerPool {
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	if eventsPerSecond <= 0 {
		eventsPerSecond = defaultRateLimit
	}
	return &WorkerPool{
		queue:   queue,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), eventsPerSecond),
		workers: workers,
		stats:   newRollingStats(statsWindow),
	}
}

// String implements fmt.Stringer for supervisor logging.
func (p *WorkerPool) String() string { return "worker-pool" }

// Serve runs the pool until the context ends. Implements suture.Service.
func (p *WorkerPool) Serve(ctx context.Context) error {
	logging.Info().
		Int("workers", p.workers).
		Float64("rate_limit", float64(p.limiter.Limit())).
		Msg("worker pool starting")

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// run is one worker's loop: dequeue, rate-limit, hand off, record timing.
func (p *WorkerPool) run(ctx context.Context, id int) {
	for {
		ev, ok := p.queue.Dequeue(ctx)
		if !ok {
			logging.Debug().Int("worker", id).Msg("worker stopping")
			return
		}

		start := time.Now()
		if !p.limiter.Allow() {
			metrics.RateLimitWaits.Inc()
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}
		p.sink.Add(ctx, ev)

		elapsed := time.Since(start)
		p.stats.Record(elapsed)
		metrics.WorkerProcessingDuration.Observe(elapsed.Seconds())
	}
}

// Stats returns the rolling processing-time snapshot.
func (p *WorkerPool) Stats() ProcessingStats {
	return p.stats.Snapshot()
}
