// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"testing"
	"time"
)

func TestRollingStatsSnapshot(t *testing.T) {
	r := newRollingStats(100)
	for i := 1; i <= 10; i++ {
		r.Record(time.Duration(i) * time.Millisecond)
	}

	s := r.Snapshot()
	if s.Count != 10 {
		t.Errorf("Count = %d, want 10", s.Count)
	}
	if want := 5500 * time.Microsecond; s.Avg != want {
		t.Errorf("Avg = %s, want %s", s.Avg, want)
	}
	if want := 10 * time.Millisecond; s.Max != want {
		t.Errorf("Max = %s, want %s", s.Max, want)
	}
	if want := 10 * time.Millisecond; s.P95 != want {
		t.Errorf("P95 = %s, want %s", s.P95, want)
	}
}

func TestRollingStatsEmpty(t *testing.T) {
	r := newRollingStats(10)
	if s := r.Snapshot(); s.Count != 0 || s.Avg != 0 || s.Max != 0 {
		t.Errorf("empty Snapshot() = %+v, want zero values", s)
	}
}

func TestRollingStatsWindowEviction(t *testing.T) {
	r := newRollingStats(4)
	for i := 1; i <= 6; i++ {
		r.Record(time.Duration(i) * time.Millisecond)
	}

	s := r.Snapshot()
	if s.Count != 4 {
		t.Errorf("Count = %d, want window size 4", s.Count)
	}
	// Samples 1ms and 2ms were evicted; max is still 6ms.
	if want := 6 * time.Millisecond; s.Max != want {
		t.Errorf("Max = %s, want %s", s.Max, want)
	}
}
