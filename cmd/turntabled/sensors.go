package main

// ============================================================================
// Sensor translation layer
// ============================================================================
// Raw input events are translated into sensor Events for the daemon loop.
// Each sensor is bound to (device, event type, event code); the event value is
// the measured period in microseconds.
// ============================================================================

type sensorKind int

const (
	sensorLight sensorKind = iota
	sensorHall
)

func (k sensorKind) String() string {
	switch k {
	case sensorLight:
		return "light"
	case sensorHall:
		return "hall"
	default:
		return "unknown"
	}
}

type sensorBinding struct {
	Kind      sensorKind
	Device    string
	EventType uint16
	EventCode uint16
}

// sensorMap resolves raw events to sensor events.
type sensorMap struct {
	bindings []sensorBinding
}

// newSensorMap builds bindings for every sensor with a device configured.
func newSensorMap(cfg SensorsConfig) sensorMap {
	var m sensorMap
	add := func(kind sensorKind, sc SensorConfig) {
		if sc.Device == "" {
			return
		}
		m.bindings = append(m.bindings, sensorBinding{
			Kind:      kind,
			Device:    ExpandPath(sc.Device),
			EventType: sc.EventType,
			EventCode: sc.EventCode,
		})
	}
	add(sensorLight, cfg.Light)
	add(sensorHall, cfg.Hall)
	return m
}

// devices returns the distinct device paths to open, in binding order.
func (m sensorMap) devices() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, b := range m.bindings {
		if _, ok := seen[b.Device]; ok {
			continue
		}
		seen[b.Device] = struct{}{}
		out = append(out, b.Device)
	}
	return out
}

// translate maps a raw event to a sensor Event.
//
// Returns ok=false for events that carry no sensor observation: sync reports,
// unbound type/code pairs, and light samples with a non-positive period (the gate
// requires positive periods). Hall ticks are kept regardless of payload because
// the tick itself is the observation.
func (m sensorMap) translate(raw rawEvent) (ev Event, kind sensorKind, ok bool) {
	if raw.Event.Type == EV_SYN {
		return nil, 0, false
	}
	for _, b := range m.bindings {
		if b.Device != raw.Device || b.EventType != raw.Event.Type || b.EventCode != raw.Event.Code {
			continue
		}
		period := int64(raw.Event.Value)
		switch b.Kind {
		case sensorLight:
			if period <= 0 {
				return nil, b.Kind, false
			}
			return FineSpeedSample{PeriodUS: period}, b.Kind, true
		case sensorHall:
			return RevolutionTick{PeriodUS: period}, b.Kind, true
		}
	}
	return nil, 0, false
}
