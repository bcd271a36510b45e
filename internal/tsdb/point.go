// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

package tsdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hearthlog/hearthlog/internal/models"
)

// DefaultMeasurement is the fixed measurement name all events are written
// under. Queries slice by tags, not by measurement.
const DefaultMeasurement = "entity_state"

// binaryStates maps the common two-valued entity states onto 1/0 so binary
// sensors, locks and presence trackers chart like numeric series.
var binaryStates = map[string]float64{
	"on":       1,
	"off":      0,
	"open":     1,
	"closed":   0,
	"home":     1,
	"not_home": 0,
	"locked":   1,
	"unlocked": 0,
}

// PointFor builds the InfluxDB point for one state change.
//
// Tags stay low-cardinality: entity_id, domain, event_type always, plus
// device_class and area when the entity carries them. Empty tag values are
// omitted rather than written as "".
//
// The point timestamp is the event's fire time truncated to millisecond
// precision, never the write time, so delayed batches land at the moment
// the state actually changed.
func PointFor(ev *models.StateChange, measurement string) *write.Point {
	tags := map[string]string{
		"entity_id":  ev.EntityID,
		"domain":     ev.Domain,
		"event_type": ev.EventType,
	}
	if dc := ev.Attribute("device_class"); dc != "" {
		tags["device_class"] = dc
	}
	if area := ev.Attribute("area"); area != "" {
		tags["area"] = area
	}

	fields := map[string]interface{}{
		"state": ev.State(),
	}
	if ev.OldState != nil && ev.OldState.Value != "" {
		fields["old_state"] = ev.OldState.Value
	}
	if v, ok := NumericValue(ev.State()); ok {
		fields["value"] = v
	}
	if ev.NewState != nil && len(ev.NewState.Attributes) > 0 {
		fields["attributes"] = string(ev.NewState.Attributes)
	}
	if ev.Context.ID != "" {
		fields["context_id"] = ev.Context.ID
	}

	ts := ev.TimeFired.Truncate(time.Millisecond)
	return write.NewPoint(measurement, tags, fields, ts)
}

// NumericValue coerces a state string into a float for the value field.
// Plain numbers parse directly; the well-known binary states map to 1/0.
// States like "unavailable" or "unknown" are not coercible and get no
// value field at all, which keeps gaps visible in charts.
func NumericValue(state string) (float64, bool) {
	if state == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(state, 64); err == nil {
		return v, true
	}
	if v, ok := binaryStates[state]; ok {
		return v, true
	}
	return 0, false
}
