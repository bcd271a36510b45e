// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package tsdb converts state-change events into time-series points and
// writes them to InfluxDB. It is the primary write path: every sealed batch
// lands here, keyed by a fixed measurement with low-cardinality tags and
// millisecond timestamps taken from the event's fire time.
package tsdb
