// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package tsdb

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/pipeline"
)

// Config holds the InfluxDB connection settings.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// Store writes sealed batches to InfluxDB. It uses the blocking write API:
// batching, retry and pacing are owned by the pipeline's accumulator and
// dispatcher, so a second buffering layer inside the client would only hide
// failures from the retry logic.
type Store struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

// NewStore connects to InfluxDB. The connection is lazy; the first write or
// Ping establishes it.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influx url required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("influx bucket required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Store{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
	}, nil
}

// WriteBatch converts every event in the batch to a point and writes them in
// one request. Implements pipeline.BatchWriter.
func (s *Store) WriteBatch(ctx context.Context, batch *pipeline.Batch) error {
	points := make([]*write.Point, 0, batch.Size())
	for _, ev := range batch.Events {
		points = append(points, PointFor(ev, s.measurement))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write batch %d (%d points): %w", batch.Seq, len(points), err)
	}
	logging.Debug().
		Uint64("batch_seq", batch.Seq).
		Int("points", len(points)).
		Msg("batch written to influx")
	return nil
}

// Ping checks connectivity to the InfluxDB server.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

// Close releases the underlying HTTP client. Call after the dispatcher has
// drained.
func (s *Store) Close() {
	s.client.Close()
}
