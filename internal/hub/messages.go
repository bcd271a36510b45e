// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package hub

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Wire message type discriminants used by the hub protocol.
const (
	TypeAuthRequired = "auth_required"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypeResult       = "result"
	TypeEvent        = "event"
)

// Message is the tagged union over inbound hub messages. Decoding picks the
// concrete variant from the type discriminant, so downstream code reads
// typed fields instead of poking at a generic map.
type Message interface {
	// MessageType returns the wire discriminant of this variant.
	MessageType() string
}

// AuthRequiredMessage is sent by the hub immediately after connect.
type AuthRequiredMessage struct {
	Version string `json:"ha_version,omitempty"`
}

// MessageType implements Message.
func (AuthRequiredMessage) MessageType() string { return TypeAuthRequired }

// AuthOKMessage confirms a successful authentication handshake.
type AuthOKMessage struct {
	Version string `json:"ha_version,omitempty"`
}

// MessageType implements Message.
func (AuthOKMessage) MessageType() string { return TypeAuthOK }

// AuthInvalidMessage rejects the presented access token. This is terminal
// for the credential and surfaces as a configuration error.
type AuthInvalidMessage struct {
	Reason string `json:"message,omitempty"`
}

// MessageType implements Message.
func (AuthInvalidMessage) MessageType() string { return TypeAuthInvalid }

// ResultMessage acknowledges a client request (subscriptions in our case).
type ResultMessage struct {
	ID      int64        `json:"id"`
	Success bool         `json:"success"`
	Error   *ResultError `json:"error,omitempty"`
}

// MessageType implements Message.
func (ResultMessage) MessageType() string { return TypeResult }

// ResultError carries the hub's failure detail on an unsuccessful result.
type ResultError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventMessage wraps one event delivered on an active subscription.
type EventMessage struct {
	ID    int64        `json:"id"`
	Event EventPayload `json:"event"`
}

// MessageType implements Message.
func (EventMessage) MessageType() string { return TypeEvent }

// EventPayload is the event body as the hub sends it. Timestamps and state
// bodies stay in wire form here; the normalizer owns validation.
type EventPayload struct {
	EventType string       `json:"event_type"`
	Data      EventData    `json:"data"`
	Origin    string       `json:"origin,omitempty"`
	TimeFired time.Time    `json:"time_fired"`
	Context   EventContext `json:"context"`
}

// EventData carries the state transition of a state_changed event.
type EventData struct {
	EntityID string     `json:"entity_id"`
	OldState *WireState `json:"old_state,omitempty"`
	NewState *WireState `json:"new_state,omitempty"`
}

// WireState is one entity state as serialized by the hub.
type WireState struct {
	EntityID    string          `json:"entity_id,omitempty"`
	State       string          `json:"state"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	LastChanged time.Time       `json:"last_changed,omitempty"`
	LastUpdated time.Time       `json:"last_updated,omitempty"`
}

// EventContext correlates an event with the action chain that caused it.
type EventContext struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// authRequest is the outbound authentication handshake message.
type authRequest struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// subscribeRequest is the outbound per-event-type subscription message.
type subscribeRequest struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

// DecodeMessage parses one inbound frame into its typed variant. Unknown
// discriminants are an error; the session logs and discards them.
func DecodeMessage(data []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}

	switch probe.Type {
	case TypeAuthRequired:
		var m AuthRequiredMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode auth_required: %w", err)
		}
		return m, nil
	case TypeAuthOK:
		var m AuthOKMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode auth_ok: %w", err)
		}
		return m, nil
	case TypeAuthInvalid:
		var m AuthInvalidMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode auth_invalid: %w", err)
		}
		return m, nil
	case TypeResult:
		var m ResultMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		return m, nil
	case TypeEvent:
		var m EventMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", probe.Type)
	}
}
