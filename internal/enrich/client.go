// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/hearthlog/hearthlog/internal/logging"
	"github.com/hearthlog/hearthlog/internal/models"
	"github.com/hearthlog/hearthlog/internal/pipeline"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxErrorBody          = 512
)

// Client posts batch events to the enrichment normalizer over HTTP.
// Events are sent one request per event: the normalizer's contract is
// request/response per event, and a mid-batch failure must fail the whole
// batch so the dispatcher's retry re-sends it intact.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a normalizer client for the given endpoint URL. A zero
// timeout picks the 10s default.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("enrichment endpoint required")
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// WriteBatch sends every event of the batch to the normalizer, stopping at
// the first failure. Implements pipeline.BatchWriter.
func (c *Client) WriteBatch(ctx context.Context, batch *pipeline.Batch) error {
	for i, ev := range batch.Events {
		if err := c.send(ctx, ev); err != nil {
			return fmt.Errorf("batch %d event %d/%d (%s): %w",
				batch.Seq, i+1, batch.Size(), ev.EntityID, err)
		}
	}
	logging.Debug().
		Uint64("batch_seq", batch.Seq).
		Int("events", batch.Size()).
		Msg("batch forwarded to normalizer")
	return nil
}

func (c *Client) send(ctx context.Context, ev *models.StateChange) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("normalizer returned %d: %s", resp.StatusCode, snippet)
	}
	// Drain so the connection is reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
