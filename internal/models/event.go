// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package models

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// EventTypeStateChanged is the hub event type carrying entity state transitions.
// It is the only event type the recorder subscribes to by default.
const EventTypeStateChanged = "state_changed"

// StateChange is the canonical, validated unit of work flowing through the
// pipeline. It is produced once by the normalizer and treated as immutable
// afterwards: the queue owns it until a worker claims it, the accumulator's
// batch owns it after that.
type StateChange struct {
	// EventType is the hub event type, e.g. "state_changed".
	EventType string `json:"event_type"`

	// EntityID is the full entity identifier, e.g. "sensor.kitchen_temp".
	EntityID string `json:"entity_id"`

	// Domain is the entity type prefix derived from EntityID,
	// e.g. "sensor", "light". Derived once at normalization time.
	Domain string `json:"domain"`

	// TimeFired is the source-provided event timestamp. Monotonic per
	// entity is not guaranteed globally; do not use it for ordering.
	TimeFired time.Time `json:"time_fired"`

	// OldState and NewState carry the entity state before and after the
	// transition. Either may be nil (entity created or removed).
	OldState *StateSnapshot `json:"old_state,omitempty"`
	NewState *StateSnapshot `json:"new_state,omitempty"`

	// Context correlates this event with the action that caused it.
	Context EventContext `json:"context"`
}

// StateSnapshot is one side of a state transition. Attributes are copied
// verbatim from the hub payload and never mutated by the pipeline.
type StateSnapshot struct {
	Value       string          `json:"state"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	LastChanged time.Time       `json:"last_changed,omitempty"`
	LastUpdated time.Time       `json:"last_updated,omitempty"`
}

// EventContext identifies the chain of actions that produced an event.
type EventContext struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// DomainOf extracts the domain from an entity id: the substring before the
// first "." separator. Returns the whole id when no separator is present.
func DomainOf(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		return entityID[:i]
	}
	return entityID
}

// State returns the new state value, or "" when the entity was removed.
func (s *StateChange) State() string {
	if s.NewState == nil {
		return ""
	}
	return s.NewState.Value
}

// Attribute returns the string value of a named attribute on the new state.
// Returns "" when the attribute is absent or not a string. Used for
// low-cardinality tag extraction (device_class, area).
func (s *StateChange) Attribute(name string) string {
	if s.NewState == nil || len(s.NewState.Attributes) == 0 {
		return ""
	}
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(s.NewState.Attributes, &attrs); err != nil {
		return ""
	}
	raw, ok := attrs[name]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}
