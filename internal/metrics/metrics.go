// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline: hub connectivity, queue backpressure, batching, and the two
// write paths. None of these surface to users directly; they feed the
// external observability sink via the ops /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hub session metrics
	HubConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connection_state",
			Help: "Current hub session state (0=disconnected, 1=connecting, 2=authenticating, 3=subscribing, 4=streaming)",
		},
	)

	HubReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_reconnects_total",
			Help: "Total number of hub reconnection attempts",
		},
	)

	HubMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_messages_received_total",
			Help: "Total inbound hub messages by message type",
		},
		[]string{"type"}, // "event", "result", "auth_ok", "auth_invalid", "unknown"
	)

	// Normalizer metrics
	EventsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_normalized_total",
			Help: "Total events accepted by the normalizer",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_rejected_total",
			Help: "Total raw messages rejected by the normalizer",
		},
		[]string{"reason"}, // "missing_entity_id", "missing_event_type", "missing_time_fired", "wrong_type"
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_queue_depth",
			Help: "Current number of events waiting in the ingest queue",
		},
	)

	QueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_queue_overflows_total",
			Help: "Total events dropped because the queue stayed full past the bounded wait",
		},
	)

	// Worker metrics
	WorkerProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_processing_duration_seconds",
			Help:    "Per-event processing duration across the worker pool",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	RateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_waits_total",
			Help: "Total worker admissions delayed by the token bucket",
		},
	)

	// Batch metrics
	BatchFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_flushes_total",
			Help: "Total batch flushes by trigger",
		},
		[]string{"trigger"}, // "size", "timeout", "shutdown"
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_size_events",
			Help:    "Number of events per flushed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Write path metrics
	WriteAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "write_attempts_total",
			Help: "Total write attempts by path and outcome",
		},
		[]string{"path", "outcome"}, // path: "primary"|"secondary"; outcome: "ok"|"error"
	)

	WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "write_duration_seconds",
			Help:    "Duration of batch write attempts by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	BatchesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batches_dropped_total",
			Help: "Total batches dropped after exhausting write retries, by path",
		},
		[]string{"path"},
	)

	BatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batches_in_flight",
			Help: "Batches currently being written by the dispatcher",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "write_breaker_state",
			Help: "Circuit breaker state per write path (0=closed, 1=half-open, 2=open)",
		},
		[]string{"path"},
	)
)

// ObserveWrite records one write attempt on a path.
func ObserveWrite(path string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	WriteAttempts.WithLabelValues(path, outcome).Inc()
	WriteDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// ObserveFlush records one batch flush with its trigger.
func ObserveFlush(trigger string, size int) {
	BatchFlushes.WithLabelValues(trigger).Inc()
	BatchSize.Observe(float64(size))
}
