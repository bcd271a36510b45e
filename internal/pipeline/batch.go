// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package pipeline

import (
	"time"

	"github.com/hearthlog/hearthlog/internal/models"
)

// Batch is an ordered, insertion-order group of events flushed together.
// The accumulator owns it while it fills; ownership transfers to the
// dispatcher at flush time and nothing appends after that. Batches are
// never merged or split.
type Batch struct {
	// Seq increases monotonically per accumulator instance. It orders
	// batches, not individual events.
	Seq uint64

	// CreatedAt is when the batch was opened, used for the age-based
	// flush trigger.
	CreatedAt time.Time

	// Events in insertion order.
	Events []*models.StateChange
}

// Size returns the number of events in the batch.
func (b *Batch) Size() int {
	return len(b.Events)
}

// Age returns how long the batch has been open.
func (b *Batch) Age(now time.Time) time.Duration {
	return now.Sub(b.CreatedAt)
}
