// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package hub

import (
	"testing"
	"time"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
	}{
		{
			name:     "auth_required",
			raw:      `{"type":"auth_required","ha_version":"2026.8.1"}`,
			wantType: TypeAuthRequired,
		},
		{
			name:     "auth_ok",
			raw:      `{"type":"auth_ok","ha_version":"2026.8.1"}`,
			wantType: TypeAuthOK,
		},
		{
			name:     "auth_invalid",
			raw:      `{"type":"auth_invalid","message":"Invalid access token"}`,
			wantType: TypeAuthInvalid,
		},
		{
			name:     "result",
			raw:      `{"id":1,"type":"result","success":true}`,
			wantType: TypeResult,
		},
		{
			name:     "event",
			raw:      `{"id":1,"type":"event","event":{"event_type":"state_changed","time_fired":"2026-08-27T10:00:00Z","data":{"entity_id":"light.kitchen"}}}`,
			wantType: TypeEvent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeMessage() error = %v", err)
			}
			if got := msg.MessageType(); got != tt.wantType {
				t.Errorf("MessageType() = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestDecodeMessageEvent(t *testing.T) {
	raw := `{
		"id": 7,
		"type": "event",
		"event": {
			"event_type": "state_changed",
			"origin": "LOCAL",
			"time_fired": "2026-08-27T10:15:30.123456Z",
			"context": {"id": "ctx-1", "user_id": "u-1"},
			"data": {
				"entity_id": "sensor.kitchen_temp",
				"old_state": {"entity_id": "sensor.kitchen_temp", "state": "21.0"},
				"new_state": {
					"entity_id": "sensor.kitchen_temp",
					"state": "21.5",
					"attributes": {"unit_of_measurement": "°C", "device_class": "temperature"}
				}
			}
		}
	}`

	msg, err := DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	ev, ok := msg.(EventMessage)
	if !ok {
		t.Fatalf("DecodeMessage() = %T, want EventMessage", msg)
	}
	if ev.ID != 7 {
		t.Errorf("ID = %d, want 7", ev.ID)
	}
	if ev.Event.EventType != "state_changed" {
		t.Errorf("EventType = %q, want state_changed", ev.Event.EventType)
	}
	if ev.Event.Data.EntityID != "sensor.kitchen_temp" {
		t.Errorf("EntityID = %q", ev.Event.Data.EntityID)
	}
	if ev.Event.Data.OldState == nil || ev.Event.Data.OldState.State != "21.0" {
		t.Errorf("OldState = %+v, want state 21.0", ev.Event.Data.OldState)
	}
	if ev.Event.Data.NewState == nil || ev.Event.Data.NewState.State != "21.5" {
		t.Errorf("NewState = %+v, want state 21.5", ev.Event.Data.NewState)
	}
	want := time.Date(2026, 8, 27, 10, 15, 30, 123456000, time.UTC)
	if !ev.Event.TimeFired.Equal(want) {
		t.Errorf("TimeFired = %s, want %s", ev.Event.TimeFired, want)
	}
	if ev.Event.Context.ID != "ctx-1" {
		t.Errorf("Context.ID = %q, want ctx-1", ev.Event.Context.ID)
	}
}

func TestDecodeMessageResultError(t *testing.T) {
	raw := `{"id":2,"type":"result","success":false,"error":{"code":"invalid_format","message":"bad subscription"}}`
	msg, err := DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	res, ok := msg.(ResultMessage)
	if !ok {
		t.Fatalf("DecodeMessage() = %T, want ResultMessage", msg)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.Error == nil || res.Error.Code != "invalid_format" {
		t.Errorf("Error = %+v, want code invalid_format", res.Error)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown type", `{"type":"pong"}`},
		{"empty type", `{"id":1}`},
		{"malformed json", `{"type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(tt.raw)); err == nil {
				t.Error("DecodeMessage() succeeded, want error")
			}
		})
	}
}
