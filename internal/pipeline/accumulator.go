// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/metrics"
	"github.com/hearthlog/hearthlog/internal/models"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 5 * time.Second
)

// BatchDispatcher receives sealed batches. Implemented by Dispatcher;
// Dispatch must not block the caller (the accumulator's critical path).
type BatchDispatcher interface {
	Dispatch(batch *Batch)
}

// Flush trigger labels.
const (
	triggerSize     = "size"
	triggerTimeout  = "timeout"
	triggerShutdown = "shutdown"
)

// Accumulator collects events into the single in-progress batch and flushes
// it when it reaches the configured size or age, whichever comes first. One
// accumulator instance is shared by all workers behind one mutex: append is
// O(1) and the critical section is tiny, which beats merging per-worker
// partial batches.
//
// The timeout trigger fires from the Serve loop's timer even when no events
// arrive, so a trickle of events never sits in the buffer longer than the
// window. Sealing the old batch and opening the new one happens atomically
// with respect to Add.
type Accumulator struct {
	dispatcher BatchDispatcher
	batchSize  int
	timeout    time.Duration

	mu      sync.Mutex
	current *Batch
	seq     uint64

	// timerKick wakes the Serve loop after a size flush so the timer
	// tracks the new batch's deadline.
	timerKick chan struct{}
}

// NewAccumulator creates an accumulator. Zero size or timeout pick the
// defaults (100 events, 5s).
func NewAccumulator(dispatcher BatchDispatcher, batchSize int, timeout time.Duration) *Accumulator {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}
	a := &Accumulator{
		dispatcher: dispatcher,
		batchSize:  batchSize,
		timeout:    timeout,
		timerKick:  make(chan struct{}, 1),
	}
	a.current = a.newBatch()
	return a
}

// String implements fmt.Stringer for supervisor logging.
func (a *Accumulator) String() string { return "batch-accumulator" }

// Add appends one event to the in-progress batch, flushing on size.
// Implements EventSink.
func (a *Accumulator) Add(_ context.Context, ev *models.StateChange) {
	var sealed *Batch

	a.mu.Lock()
	a.current.Events = append(a.current.Events, ev)
	if len(a.current.Events) >= a.batchSize {
		sealed = a.rotateLocked()
	}
	a.mu.Unlock()

	if sealed != nil {
		a.handOff(sealed, triggerSize)
		// Realign the timer with the fresh batch.
		select {
		case a.timerKick <- struct{}{}:
		default:
		}
	}
}

// Serve runs the timeout trigger until the context ends. Implements
// suture.Service. The final flush on shutdown is owned by FlushFinal, not
// by Serve, so supervisor restarts never double-flush.
func (a *Accumulator) Serve(ctx context.Context) error {
	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.timerKick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.remaining())
		case <-timer.C:
			var sealed *Batch
			a.mu.Lock()
			if len(a.current.Events) > 0 && a.current.Age(time.Now()) >= a.timeout {
				sealed = a.rotateLocked()
			} else if len(a.current.Events) == 0 {
				// Nothing buffered: restart the window so a lone
				// event arriving later gets the full timeout.
				a.current.CreatedAt = time.Now()
			}
			a.mu.Unlock()

			if sealed != nil {
				a.handOff(sealed, triggerTimeout)
			}
			timer.Reset(a.remaining())
		}
	}
}

// FlushFinal seals and dispatches whatever is buffered. Called once during
// shutdown after the workers have stopped.
func (a *Accumulator) FlushFinal() {
	a.mu.Lock()
	var sealed *Batch
	if len(a.current.Events) > 0 {
		sealed = a.rotateLocked()
	}
	a.mu.Unlock()

	if sealed != nil {
		a.handOff(sealed, triggerShutdown)
	}
}

// Pending returns the size of the in-progress batch.
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.current.Events)
}

// rotateLocked seals the current batch and opens the next one. Caller holds
// the mutex.
func (a *Accumulator) rotateLocked() *Batch {
	sealed := a.current
	a.current = a.newBatch()
	return sealed
}

// newBatch opens an empty batch with the next sequence number. Caller holds
// the mutex except during construction.
func (a *Accumulator) newBatch() *Batch {
	a.seq++
	return &Batch{
		Seq:       a.seq,
		CreatedAt: time.Now(),
		Events:    make([]*models.StateChange, 0, a.batchSize),
	}
}

// remaining computes the time until the current batch's deadline.
func (a *Accumulator) remaining() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	left := a.timeout - a.current.Age(time.Now())
	if left < time.Millisecond {
		left = time.Millisecond
	}
	return left
}

// handOff transfers ownership of a sealed batch to the dispatcher.
func (a *Accumulator) handOff(b *Batch, trigger string) {
	metrics.ObserveFlush(trigger, b.Size())
	logging.Debug().
		Uint64("batch_seq", b.Seq).
		Int("size", b.Size()).
		Str("trigger", trigger).
		Msg("batch sealed")
	a.dispatcher.Dispatch(b)
}
