// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package pipeline moves canonical state changes from the hub session to
// the time-series store: a bounded ingest queue decouples the socket read
// loop from the write path, a fixed worker pool drains it through a shared
// rate limiter, a single locked accumulator turns events into size- or
// time-triggered batches, and a dispatcher commits each batch on one or two
// write paths with bounded linear retry.
//
// Ordering: there is no global FIFO guarantee across workers, and no
// per-entity guarantee once more than one worker is active. Batch sequence
// numbers give a total order over batches, not over events. Overflow under
// extreme backpressure is lossy: the producer waits a bounded interval,
// then drops and counts.
package pipeline
