// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package tsdb

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hearthlog/hearthlog/internal/models"
)

func tagValue(p *write.Point, key string) (string, bool) {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

func fieldValue(p *write.Point, key string) (interface{}, bool) {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func sampleEvent() *models.StateChange {
	return &models.StateChange{
		EventType: "state_changed",
		EntityID:  "sensor.kitchen_temp",
		Domain:    "sensor",
		TimeFired: time.Date(2026, 8, 27, 10, 15, 30, 123456789, time.UTC),
		OldState:  &models.StateSnapshot{Value: "21.0"},
		NewState: &models.StateSnapshot{
			Value:      "21.5",
			Attributes: json.RawMessage(`{"device_class":"temperature","area":"kitchen","unit_of_measurement":"°C"}`),
		},
		Context: models.EventContext{ID: "ctx-1"},
	}
}

func TestPointFor(t *testing.T) {
	p := PointFor(sampleEvent(), "entity_state")

	if p.Name() != "entity_state" {
		t.Errorf("measurement = %q, want entity_state", p.Name())
	}

	wantTags := map[string]string{
		"entity_id":    "sensor.kitchen_temp",
		"domain":       "sensor",
		"event_type":   "state_changed",
		"device_class": "temperature",
		"area":         "kitchen",
	}
	for key, want := range wantTags {
		got, ok := tagValue(p, key)
		if !ok {
			t.Errorf("tag %q missing", key)
			continue
		}
		if got != want {
			t.Errorf("tag %q = %q, want %q", key, got, want)
		}
	}

	if got, ok := fieldValue(p, "state"); !ok || got != "21.5" {
		t.Errorf("field state = %v (%v), want 21.5", got, ok)
	}
	if got, ok := fieldValue(p, "old_state"); !ok || got != "21.0" {
		t.Errorf("field old_state = %v (%v), want 21.0", got, ok)
	}
	if got, ok := fieldValue(p, "value"); !ok || got != 21.5 {
		t.Errorf("field value = %v (%v), want 21.5", got, ok)
	}
	if got, ok := fieldValue(p, "context_id"); !ok || got != "ctx-1" {
		t.Errorf("field context_id = %v (%v), want ctx-1", got, ok)
	}
	if _, ok := fieldValue(p, "attributes"); !ok {
		t.Error("field attributes missing")
	}

	want := time.Date(2026, 8, 27, 10, 15, 30, 123000000, time.UTC)
	if !p.Time().Equal(want) {
		t.Errorf("timestamp = %s, want %s (ms precision)", p.Time(), want)
	}
}

func TestPointForOmitsEmptyTags(t *testing.T) {
	ev := sampleEvent()
	ev.NewState.Attributes = nil // no device_class or area

	p := PointFor(ev, "entity_state")
	if _, ok := tagValue(p, "device_class"); ok {
		t.Error("device_class tag present without the attribute")
	}
	if _, ok := tagValue(p, "area"); ok {
		t.Error("area tag present without the attribute")
	}
	if _, ok := fieldValue(p, "attributes"); ok {
		t.Error("attributes field present with no attributes")
	}
}

func TestPointForRemovedEntity(t *testing.T) {
	ev := sampleEvent()
	ev.OldState = nil
	ev.NewState = nil

	p := PointFor(ev, "entity_state")
	if got, ok := fieldValue(p, "state"); !ok || got != "" {
		t.Errorf("field state = %v, want empty string", got)
	}
	if _, ok := fieldValue(p, "old_state"); ok {
		t.Error("old_state field present with nil old state")
	}
	if _, ok := fieldValue(p, "value"); ok {
		t.Error("value field present with no state")
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		state  string
		want   float64
		wantOK bool
	}{
		{"21.5", 21.5, true},
		{"-3", -3, true},
		{"0", 0, true},
		{"1e3", 1000, true},
		{"on", 1, true},
		{"off", 0, true},
		{"open", 1, true},
		{"closed", 0, true},
		{"home", 1, true},
		{"not_home", 0, true},
		{"locked", 1, true},
		{"unlocked", 0, true},
		{"unavailable", 0, false},
		{"unknown", 0, false},
		{"playing", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			got, ok := NumericValue(tt.state)
			if ok != tt.wantOK {
				t.Fatalf("NumericValue(%q) ok = %v, want %v", tt.state, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("NumericValue(%q) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}
