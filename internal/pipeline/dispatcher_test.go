// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptWriter fails the first failCount writes, then succeeds.
type scriptWriter struct {
	mu        sync.Mutex
	calls     int
	failCount int
	batches   []*Batch
}

func (w *scriptWriter) WriteBatch(_ context.Context, batch *Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.failCount {
		return errors.New("store unavailable")
	}
	w.batches = append(w.batches, batch)
	return nil
}

func (w *scriptWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func (w *scriptWriter) written() []*Batch {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Batch, len(w.batches))
	copy(out, w.batches)
	return out
}

func testBatch(seq uint64, n int) *Batch {
	b := &Batch{Seq: seq, CreatedAt: time.Now()}
	for i := 0; i < n; i++ {
		b.Events = append(b.Events, testEvent("light.a"))
	}
	return b
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("Drain() = %v", err)
	}
}

func TestDispatcherWritesPrimary(t *testing.T) {
	primary := &scriptWriter{}
	d := NewDispatcher(primary, nil, DispatcherConfig{Attempts: 3, RetryBase: time.Millisecond})

	d.Dispatch(testBatch(1, 5))
	drain(t, d)

	if got := primary.callCount(); got != 1 {
		t.Errorf("primary calls = %d, want 1", got)
	}
	written := primary.written()
	if len(written) != 1 || written[0].Seq != 1 {
		t.Errorf("written = %v, want batch seq 1", written)
	}
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	primary := &scriptWriter{failCount: 2}
	d := NewDispatcher(primary, nil, DispatcherConfig{Attempts: 3, RetryBase: time.Millisecond})

	d.Dispatch(testBatch(1, 1))
	drain(t, d)

	if got := primary.callCount(); got != 3 {
		t.Errorf("primary calls = %d, want 3 (two failures then success)", got)
	}
	if len(primary.written()) != 1 {
		t.Errorf("written = %d batches, want 1", len(primary.written()))
	}
}

func TestDispatcherDropsAfterExhaustedRetries(t *testing.T) {
	primary := &scriptWriter{failCount: 4}
	d := NewDispatcher(primary, nil, DispatcherConfig{Attempts: 3, RetryBase: time.Millisecond})

	d.Dispatch(testBatch(1, 1))
	drain(t, d)

	if got := primary.callCount(); got != 3 {
		t.Errorf("primary calls = %d, want exactly 3 attempts", got)
	}
	if len(primary.written()) != 0 {
		t.Errorf("written = %d batches, want 0 after drop", len(primary.written()))
	}
}

func TestDispatcherFansOutToSecondary(t *testing.T) {
	primary := &scriptWriter{}
	secondary := &scriptWriter{}
	d := NewDispatcher(primary, secondary, DispatcherConfig{Attempts: 3, RetryBase: time.Millisecond})

	d.Dispatch(testBatch(1, 2))
	d.Dispatch(testBatch(2, 2))
	drain(t, d)

	if got := len(primary.written()); got != 2 {
		t.Errorf("primary wrote %d batches, want 2", got)
	}
	if got := len(secondary.written()); got != 2 {
		t.Errorf("secondary wrote %d batches, want 2", got)
	}
}

func TestDispatcherSecondaryFailureDoesNotAffectPrimary(t *testing.T) {
	primary := &scriptWriter{}
	secondary := &scriptWriter{failCount: 4}
	d := NewDispatcher(primary, secondary, DispatcherConfig{Attempts: 3, RetryBase: time.Millisecond})

	d.Dispatch(testBatch(1, 1))
	drain(t, d)

	if got := len(primary.written()); got != 1 {
		t.Errorf("primary wrote %d batches, want 1", got)
	}
	if got := len(secondary.written()); got != 0 {
		t.Errorf("secondary wrote %d batches, want 0", got)
	}
}

// blockingWriter parks until released, for drain deadline tests.
type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) WriteBatch(ctx context.Context, _ *Batch) error {
	select {
	case <-w.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcherDrainDeadline(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	d := NewDispatcher(w, nil, DispatcherConfig{Attempts: 1, RetryBase: time.Millisecond})

	d.Dispatch(testBatch(1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() = %v, want context.DeadlineExceeded", err)
	}
}
