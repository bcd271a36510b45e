// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package health tracks runtime readiness for the ops endpoints. The hub
// session reports connection state transitions; the pipeline contributes
// queue and drop counters on demand.
package health

import (
	"sync"
	"time"

	"github.com/hearthlog/hearthlog/internal/pipeline"
)

// Status is a point-in-time readiness snapshot, serialized by /readyz.
type Status struct {
	InstanceID     string    `json:"instance_id,omitempty"`
	Ready          bool      `json:"ready"`
	HubState       string    `json:"hub_state"`
	HubConnectedAt time.Time `json:"hub_connected_at,omitempty"`
	Reconnects     uint64    `json:"reconnects"`
	QueueDepth     int       `json:"queue_depth"`
	QueueOverflows int64     `json:"queue_overflows"`

	// Processing is the worker pool's rolling per-event timing window.
	Processing pipeline.ProcessingStats `json:"processing"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PipelineProbe reads live pipeline counters. Implemented by the ingest
// queue.
type PipelineProbe interface {
	Depth() int
	Overflows() int64
}

// WorkerProbe reads the worker pool's processing stats. Implemented by the
// worker pool.
type WorkerProbe interface {
	Stats() pipeline.ProcessingStats
}

// Tracker aggregates readiness signals. Safe for concurrent use; the hub
// session writes, HTTP handlers read.
type Tracker struct {
	mu          sync.RWMutex
	instanceID  string
	hubState    string
	streaming   bool
	connectedAt time.Time
	reconnects  uint64
	probe       PipelineProbe
	workerProbe WorkerProbe
}

// NewTracker creates a tracker. probe may be nil until the pipeline is
// wired.
func NewTracker(probe PipelineProbe) *Tracker {
	return &Tracker{hubState: "disconnected", probe: probe}
}

// SetWorkerProbe attaches the worker pool's stats source.
func (t *Tracker) SetWorkerProbe(p WorkerProbe) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workerProbe = p
}

// SetInstanceID records this run's identity for readiness snapshots.
func (t *Tracker) SetInstanceID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instanceID = id
}

// SetHubState records a hub session state transition. state is the
// session's State.String(). streaming marks the fully-subscribed state that
// readiness gates on.
func (t *Tracker) SetHubState(state string, streaming bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasStreaming := t.streaming
	t.hubState = state
	t.streaming = streaming
	if streaming && !wasStreaming {
		t.connectedAt = time.Now()
	}
	if !streaming && wasStreaming {
		t.reconnects++
	}
}

// Snapshot returns the current readiness view.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Status{
		InstanceID:     t.instanceID,
		Ready:          t.streaming,
		HubState:       t.hubState,
		HubConnectedAt: t.connectedAt,
		Reconnects:     t.reconnects,
		UpdatedAt:      time.Now(),
	}
	if t.probe != nil {
		s.QueueDepth = t.probe.Depth()
		s.QueueOverflows = t.probe.Overflows()
	}
	if t.workerProbe != nil {
		s.Processing = t.workerProbe.Stats()
	}
	return s
}
