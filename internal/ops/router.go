// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package ops serves the operational HTTP endpoints: liveness, readiness
// and Prometheus metrics. It carries no event data.
package ops

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthlog/hearthlog/internal/health"
	"github.com/hearthlog/hearthlog/internal/logging"
)

// NewRouter builds the ops router.
//
// /healthz answers 200 whenever the process is up. /readyz answers 200 only
// while the hub subscription is streaming, with a JSON snapshot either way,
// so orchestrators stop routing to a recorder that cannot receive events.
func NewRouter(tracker *health.Tracker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		snap := tracker.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if !snap.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logging.Err(err).Msg("encode readiness snapshot")
		}
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
