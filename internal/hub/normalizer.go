// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package hub

import (
	"github.com/hearthlog/hearthlog/internal/metrics"
	"github.com/hearthlog/hearthlog/internal/models"
)

// Rejection reasons returned by Normalize. They double as metric labels.
const (
	RejectWrongType     = "wrong_type"
	RejectMissingEvent  = "missing_event_type"
	RejectMissingEntity = "missing_entity_id"
	RejectMissingTime   = "missing_time_fired"
)

// Rejection reports why a raw message did not become a canonical event.
// It is a normal return value, not a failure: rejected messages are counted
// and dropped, never propagated up the worker stack.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return "event rejected: " + r.Reason
}

// Normalize validates one inbound message and extracts the canonical state
// change. It is a pure function with no shared state and is safe to call
// concurrently. Numeric coercion of state values is deliberately left to
// the time-series schema so normalization stays total.
func Normalize(msg Message) (*models.StateChange, *Rejection) {
	ev, ok := msg.(EventMessage)
	if !ok {
		return nil, reject(RejectWrongType)
	}

	payload := ev.Event
	if payload.EventType == "" {
		return nil, reject(RejectMissingEvent)
	}
	if payload.Data.EntityID == "" {
		return nil, reject(RejectMissingEntity)
	}
	if payload.TimeFired.IsZero() {
		return nil, reject(RejectMissingTime)
	}

	sc := &models.StateChange{
		EventType: payload.EventType,
		EntityID:  payload.Data.EntityID,
		Domain:    models.DomainOf(payload.Data.EntityID),
		TimeFired: payload.TimeFired,
		OldState:  snapshot(payload.Data.OldState),
		NewState:  snapshot(payload.Data.NewState),
		Context: models.EventContext{
			ID:       payload.Context.ID,
			UserID:   payload.Context.UserID,
			ParentID: payload.Context.ParentID,
		},
	}

	metrics.EventsNormalized.Inc()
	return sc, nil
}

// snapshot copies a wire state into the canonical form. Attributes are
// carried verbatim; a nil wire state stays nil.
func snapshot(ws *WireState) *models.StateSnapshot {
	if ws == nil {
		return nil
	}
	return &models.StateSnapshot{
		Value:       ws.State,
		Attributes:  ws.Attributes,
		LastChanged: ws.LastChanged,
		LastUpdated: ws.LastUpdated,
	}
}

func reject(reason string) *Rejection {
	metrics.EventsRejected.WithLabelValues(reason).Inc()
	return &Rejection{Reason: reason}
}
