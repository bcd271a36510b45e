// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Command recorder connects to a home-automation hub, normalizes its
// state-change event stream and writes batched time-series points to
// InfluxDB.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlog/hearthlog/internal/config"
	"github.com/hearthlog/hearthlog/internal/enrich"
	"github.com/hearthlog/hearthlog/internal/health"
	"github.com/hearthlog/hearthlog/internal/hub"
	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/ops"
	"github.com/hearthlog/hearthlog/internal/pipeline"
	"github.com/hearthlog/hearthlog/internal/supervisor"
	"github.com/hearthlog/hearthlog/internal/supervisor/services"
	"github.com/hearthlog/hearthlog/internal/tsdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	instanceID := uuid.NewString()
	logging.Info().
		Str("instance_id", instanceID).
		Str("hub_url", cfg.Hub.URL).
		Str("influx_url", cfg.Influx.URL).
		Str("influx_bucket", cfg.Influx.Bucket).
		Bool("enrichment_enabled", cfg.EnrichEnabled()).
		Msg("Starting Hearthlog recorder")

	// Write paths, innermost first.
	store, err := tsdb.NewStore(tsdb.Config{
		URL:         cfg.Influx.URL,
		Token:       cfg.Influx.Token,
		Org:         cfg.Influx.Org,
		Bucket:      cfg.Influx.Bucket,
		Measurement: cfg.Influx.Measurement,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize time-series store")
	}

	var secondary pipeline.BatchWriter
	if cfg.EnrichEnabled() {
		client, err := enrich.NewClient(cfg.Enrich.URL, cfg.Enrich.Timeout)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize enrichment client")
		}
		secondary = client
		logging.Info().Str("endpoint", cfg.Enrich.URL).Msg("Enrichment write path enabled")
	}

	dispatcher := pipeline.NewDispatcher(store, secondary, pipeline.DispatcherConfig{
		Attempts:  cfg.Pipeline.WriteAttempts,
		RetryBase: cfg.Pipeline.WriteRetryBase,
	})
	accumulator := pipeline.NewAccumulator(dispatcher, cfg.Pipeline.BatchSize, cfg.Pipeline.BatchTimeout)
	queue := pipeline.NewQueue(cfg.Pipeline.QueueCapacity, cfg.Pipeline.EnqueueWait)
	pool := pipeline.NewWorkerPool(queue, accumulator, cfg.Pipeline.Workers, cfg.Pipeline.EventsPerSecond)

	tracker := health.NewTracker(queue)
	tracker.SetInstanceID(instanceID)
	tracker.SetWorkerProbe(pool)

	session := hub.NewSession(hub.SessionConfig{
		URL:           cfg.Hub.URL,
		AccessToken:   cfg.Hub.AccessToken,
		EventTypes:    cfg.Hub.EventTypes,
		ReconnectBase: cfg.Hub.ReconnectBase,
		ReconnectCap:  cfg.Hub.ReconnectCap,
	})
	session.SetStateObserver(func(st hub.State) {
		tracker.SetHubState(st.String(), st == hub.StateStreaming)
	})
	session.SetHandler(func(msg hub.Message) {
		ev, rej := hub.Normalize(msg)
		if rej != nil {
			logging.Trace().Str("reason", rej.Reason).Msg("event rejected")
			return
		}
		queue.Enqueue(ev)
	})

	server := &http.Server{
		Addr:              cfg.Ops.Addr,
		Handler:           ops.NewRouter(tracker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Supervisor tree. Pipeline services start before the ingest session so
	// the queue always has consumers when events begin arriving.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(pool)
	tree.AddPipelineService(accumulator)
	tree.AddIngestService(services.NewSessionService(session))
	tree.AddOpsService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// The workers have stopped; seal whatever is buffered and give in-flight
	// writes a bounded window to land before the store closes.
	accumulator.FlushFinal()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Pipeline.DrainTimeout)
	defer drainCancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		logging.Warn().Err(err).Msg("Write drain deadline exceeded, pending batches abandoned")
	}
	store.Close()

	logging.Info().Msg("Recorder stopped")
}
