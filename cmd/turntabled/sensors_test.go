package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSensorMap() sensorMap {
	return newSensorMap(SensorsConfig{
		Light: SensorConfig{Device: "/dev/input/event4", EventType: EV_MSC, EventCode: MSC_RAW},
		Hall:  SensorConfig{Device: "/dev/input/event5", EventType: EV_MSC, EventCode: MSC_PULSELED},
	})
}

func raw(device string, typ, code uint16, value int32) rawEvent {
	return rawEvent{Device: device, Event: inputEvent{Type: typ, Code: code, Value: value}}
}

func TestSensorMap_Translate(t *testing.T) {
	m := testSensorMap()

	ev, kind, ok := m.translate(raw("/dev/input/event4", EV_MSC, MSC_RAW, 1000000))
	require.True(t, ok)
	require.Equal(t, sensorLight, kind)
	require.Equal(t, FineSpeedSample{PeriodUS: 1000000}, ev)

	ev, kind, ok = m.translate(raw("/dev/input/event5", EV_MSC, MSC_PULSELED, 999000))
	require.True(t, ok)
	require.Equal(t, sensorHall, kind)
	require.Equal(t, RevolutionTick{PeriodUS: 999000}, ev)

	// The tick itself is the observation, whatever the payload.
	ev, _, ok = m.translate(raw("/dev/input/event5", EV_MSC, MSC_PULSELED, 0))
	require.True(t, ok)
	require.Equal(t, RevolutionTick{}, ev)
}

func TestSensorMap_TranslateIgnores(t *testing.T) {
	m := testSensorMap()

	for name, r := range map[string]rawEvent{
		"sync report":        raw("/dev/input/event4", EV_SYN, 0, 0),
		"zero light period":  raw("/dev/input/event4", EV_MSC, MSC_RAW, 0),
		"negative period":    raw("/dev/input/event4", EV_MSC, MSC_RAW, -1),
		"wrong code":         raw("/dev/input/event4", EV_MSC, MSC_SCAN, 1000),
		"wrong device":       raw("/dev/input/event9", EV_MSC, MSC_RAW, 1000),
		"hall code on light": raw("/dev/input/event4", EV_MSC, MSC_PULSELED, 1000),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, ok := m.translate(r)
			require.False(t, ok)
		})
	}
}

func TestSensorMap_SharedDevice(t *testing.T) {
	m := newSensorMap(SensorsConfig{
		Light: SensorConfig{Device: "/dev/input/event4", EventType: EV_MSC, EventCode: MSC_RAW},
		Hall:  SensorConfig{Device: "/dev/input/event4", EventType: EV_MSC, EventCode: MSC_PULSELED},
	})
	require.Equal(t, []string{"/dev/input/event4"}, m.devices())

	_, kind, ok := m.translate(raw("/dev/input/event4", EV_MSC, MSC_PULSELED, 1))
	require.True(t, ok)
	require.Equal(t, sensorHall, kind)
}

func TestSensorMap_DisabledSensors(t *testing.T) {
	m := newSensorMap(SensorsConfig{
		Hall: SensorConfig{Device: "/dev/input/event5", EventType: EV_MSC, EventCode: MSC_PULSELED},
	})
	require.Equal(t, []string{"/dev/input/event5"}, m.devices())

	require.Empty(t, newSensorMap(SensorsConfig{}).devices())
}

func TestSensorKind_String(t *testing.T) {
	require.Equal(t, "light", sensorLight.String())
	require.Equal(t, "hall", sensorHall.String())
	require.Equal(t, "unknown", sensorKind(7).String())
}

func TestForwardSensorEvents_PreservesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rawCh := make(chan rawEvent, 8)
	events := make(chan Event, 8)
	go forwardSensorEvents(ctx, rawCh, testSensorMap(), events, discardLogger())

	rawCh <- raw("/dev/input/event4", EV_MSC, MSC_RAW, 1000)
	rawCh <- raw("/dev/input/event4", EV_SYN, 0, 0)
	rawCh <- raw("/dev/input/event4", EV_MSC, MSC_RAW, 1100)
	rawCh <- raw("/dev/input/event5", EV_MSC, MSC_PULSELED, 1100)
	rawCh <- raw("/dev/input/event9", EV_KEY, 30, 1)

	want := []Event{
		FineSpeedSample{PeriodUS: 1000},
		FineSpeedSample{PeriodUS: 1100},
		RevolutionTick{PeriodUS: 1100},
	}
	for i, w := range want {
		select {
		case got := <-events:
			require.Equal(t, w, got, "event %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}

	select {
	case got := <-events:
		t.Fatalf("unexpected extra event %#v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
