package main

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ============================================================================
// Events - inputs to the daemon loop
// ============================================================================
// Sensor events come from input devices (input.go) or IPC clients (ipc.go).
// The daemon loop wraps them in TimedEvent and reduces them in arrival order.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// maxPeriodUS is the largest period that still fits a time.Duration.
const maxPeriodUS = math.MaxInt64 / int64(time.Microsecond)

// FineSpeedSample is a light sensor period estimate (many per revolution).
type FineSpeedSample struct {
	PeriodUS int64 `json:"period_us"`
}

func (FineSpeedSample) eventMarker() {}

// Period returns the sample as a duration.
func (s FineSpeedSample) Period() time.Duration {
	return time.Duration(s.PeriodUS) * time.Microsecond
}

// RevolutionTick is emitted by the hall sensor once per revolution.
// PeriodUS is the hall sensor's own estimate; the gate does not use it.
type RevolutionTick struct {
	PeriodUS int64 `json:"period_us"`
}

func (RevolutionTick) eventMarker() {}

// Period returns the tick payload as a duration.
func (r RevolutionTick) Period() time.Duration {
	return time.Duration(r.PeriodUS) * time.Microsecond
}

// QueryInhibited asks whether release is currently inhibited.
// IPC answers it directly from the gate; it never needs the daemon loop.
type QueryInhibited struct{}

func (QueryInhibited) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for a coherent StateSnapshot.
// The reply channel should be buffered (capacity 1); delivery never blocks.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// TimedEvent attaches the daemon's receive time to an external event.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	eventTypeFineSpeedSample = "fine_speed_sample"
	eventTypeRevolutionTick  = "revolution_tick"
	eventTypeQueryInhibited  = "query_inhibited"
)

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case eventTypeFineSpeedSample:
		var s FineSpeedSample
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal FineSpeedSample: %w", err)
		}
		if s.PeriodUS <= 0 || s.PeriodUS > maxPeriodUS {
			return nil, fmt.Errorf("fine_speed_sample: period_us must be in 1..%d, got %d", maxPeriodUS, s.PeriodUS)
		}
		return s, nil

	case eventTypeRevolutionTick:
		var r RevolutionTick
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &r); err != nil {
				return nil, fmt.Errorf("unmarshal RevolutionTick: %w", err)
			}
		}
		return r, nil

	case eventTypeQueryInhibited:
		return QueryInhibited{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case FineSpeedSample:
		env.Type = eventTypeFineSpeedSample
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal FineSpeedSample: %w", err)
		}
		env.Data = data

	case RevolutionTick:
		env.Type = eventTypeRevolutionTick
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal RevolutionTick: %w", err)
		}
		env.Data = data

	case QueryInhibited:
		env.Type = eventTypeQueryInhibited

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
