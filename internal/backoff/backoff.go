// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package backoff holds the two retry delay policies used by the pipeline.
// Reconnecting to the hub retries forever with exponential growth; batch
// writes retry a fixed number of times with linear growth. They are kept
// as separate types because the policies differ in kind, not just in
// parameters.
package backoff

import (
	"math"
	"time"
)

// Exponential computes capped exponential delays: Base, 2*Base, 4*Base, ...
// up to Cap. Used for hub reconnection, where attempts are unbounded.
type Exponential struct {
	// Base is the first delay. Default 1s.
	Base time.Duration
	// Cap is the maximum delay. Default 60s.
	Cap time.Duration
}

// Delay returns the wait before the given attempt (attempt 0 = first retry).
func (e Exponential) Delay(attempt int) time.Duration {
	base := e.Base
	if base <= 0 {
		base = time.Second
	}
	cap := e.Cap
	if cap <= 0 {
		cap = 60 * time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	// 2^attempt overflows time.Duration long before attempt 50
	if attempt > 50 {
		return cap
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d < 0 || d > cap {
		return cap
	}
	return d
}

// Linear computes delays Base, 2*Base, 3*Base, ... with no cap of its own.
// Used for batch write retries, where the attempt count is bounded by the
// caller.
type Linear struct {
	// Base is the delay after the first failure. Default 1s.
	Base time.Duration
}

// Delay returns the wait before the given attempt (attempt 0 = first retry).
func (l Linear) Delay(attempt int) time.Duration {
	base := l.Base
	if base <= 0 {
		base = time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(attempt+1) * base
}
