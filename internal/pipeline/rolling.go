// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"sort"
	"sync"
	"time"
)

// rollingStats keeps the last N processing durations for observability.
// A plain ring buffer behind a mutex: samples arrive from every worker and
// reads are rare (stats snapshots only).
type rollingStats struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
}

func newRollingStats(window int) *rollingStats {
	if window <= 0 {
		window = 1000
	}
	return &rollingStats{samples: make([]time.Duration, window)}
}

// Record adds one sample, evicting the oldest when the window is full.
func (r *rollingStats) Record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.next] = d
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
}

// ProcessingStats is a snapshot of recent per-event processing times.
type ProcessingStats struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

// Snapshot computes count, average, p95 and max over the current window.
func (r *rollingStats) Snapshot() ProcessingStats {
	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.samples)
	}
	window := make([]time.Duration, n)
	copy(window, r.samples[:n])
	r.mu.Unlock()

	if n == 0 {
		return ProcessingStats{}
	}

	var sum, max time.Duration
	for _, d := range window {
		sum += d
		if d > max {
			max = d
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
	p95 := window[(n*95)/100]

	return ProcessingStats{
		Count: n,
		Avg:   sum / time.Duration(n),
		P95:   p95,
		Max:   max,
	}
}
