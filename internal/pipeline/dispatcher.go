// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hearthlog/hearthlog/internal/backoff"
	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/metrics"
)

const (
	defaultWriteAttempts = 3
	defaultRetryBase     = time.Second
)

// Write path labels, used in logs and metric labels.
const (
	PathPrimary   = "primary"
	PathSecondary = "secondary"
)

// BatchWriter delivers one sealed batch to a destination. Implementations
// must be safe for concurrent use; the dispatcher runs one goroutine per
// in-flight batch.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch *Batch) error
}

// writePath pairs a destination with its own retry and breaker state so a
// struggling secondary never slows the primary down.
type writePath struct {
	name    string
	writer  BatchWriter
	breaker *gobreaker.CircuitBreaker[any]
}

// Dispatcher fans sealed batches out to the primary store and, when
// configured, the enrichment path. Each batch is handled on its own
// goroutine: retries for one batch never delay the next flush. Batches that
// exhaust their attempts are dropped and counted, matching the best-effort
// contract of the rest of the pipeline.
type Dispatcher struct {
	paths    []*writePath
	attempts int
	retry    backoff.Linear

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// DispatcherConfig tunes retry behaviour. Zero values pick production
// defaults (3 attempts, 1s linear base).
type DispatcherConfig struct {
	Attempts  int
	RetryBase time.Duration
}

// NewDispatcher creates a dispatcher writing to primary and, if non-nil,
// secondary.
func NewDispatcher(primary, secondary BatchWriter, cfg DispatcherConfig) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultWriteAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		attempts: cfg.Attempts,
		retry:    backoff.Linear{Base: cfg.RetryBase},
		baseCtx:  ctx,
		cancel:   cancel,
	}
	d.paths = append(d.paths, newWritePath(PathPrimary, primary))
	if secondary != nil {
		d.paths = append(d.paths, newWritePath(PathSecondary, secondary))
	}
	return d
}

func newWritePath(name string, writer BatchWriter) *writePath {
	settings := gobreaker.Settings{
		Name:        name + "-writer",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(bname string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", bname).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("write breaker state change")
		},
	}
	return &writePath{
		name:    name,
		writer:  writer,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Dispatch hands a sealed batch off for asynchronous delivery. It never
// blocks. Implements BatchDispatcher.
func (d *Dispatcher) Dispatch(batch *Batch) {
	for _, p := range d.paths {
		d.wg.Add(1)
		metrics.BatchesInFlight.Inc()
		go func(p *writePath) {
			defer d.wg.Done()
			defer metrics.BatchesInFlight.Dec()
			d.deliver(p, batch)
		}(p)
	}
}

// deliver pushes one batch down one path, retrying with linear backoff
// until the attempt budget runs out.
func (d *Dispatcher) deliver(p *writePath, batch *Batch) {
	var lastErr error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			delay := d.retry.Delay(attempt - 1)
			select {
			case <-time.After(delay):
			case <-d.baseCtx.Done():
				// Drain deadline passed; count the batch as lost.
				d.dropped(p, batch, lastErr)
				return
			}
		}

		start := time.Now()
		_, err := p.breaker.Execute(func() (any, error) {
			return nil, p.writer.WriteBatch(d.baseCtx, batch)
		})
		metrics.ObserveWrite(p.name, time.Since(start), err)
		if err == nil {
			if attempt > 0 {
				logging.Info().
					Str("path", p.name).
					Uint64("batch_seq", batch.Seq).
					Int("attempt", attempt+1).
					Msg("batch write recovered")
			}
			return
		}
		lastErr = err
		logging.Warn().
			Err(err).
			Str("path", p.name).
			Uint64("batch_seq", batch.Seq).
			Int("size", batch.Size()).
			Int("attempt", attempt+1).
			Int("max_attempts", d.attempts).
			Msg("batch write failed")
	}
	d.dropped(p, batch, lastErr)
}

func (d *Dispatcher) dropped(p *writePath, batch *Batch, err error) {
	metrics.BatchesDropped.WithLabelValues(p.name).Inc()
	logging.Error().
		Err(err).
		Str("path", p.name).
		Uint64("batch_seq", batch.Seq).
		Int("size", batch.Size()).
		Msg("batch dropped after exhausting retries")
}

// Drain waits for in-flight writes to finish, up to the context deadline.
// After the deadline, pending retries are abandoned. Safe to call once
// during shutdown.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
