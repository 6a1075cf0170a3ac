package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03
	EV_MSC = 0x04

	MSC_SERIAL    = 0x00
	MSC_PULSELED  = 0x01
	MSC_GESTURE   = 0x02
	MSC_RAW       = 0x03
	MSC_SCAN      = 0x04
	MSC_TIMESTAMP = 0x05
)

// Sensor defaults. Drivers report the measured period (microseconds) as the event value.
const (
	defaultLightDevice    = "/dev/input/event4"
	defaultLightEventType = EV_MSC
	defaultLightEventCode = MSC_RAW

	defaultHallDevice    = "/dev/input/event5"
	defaultHallEventType = EV_MSC
	defaultHallEventCode = MSC_PULSELED
)

const (
	defaultSocketPath = "/tmp/turntabled.sock"
	defaultHTTPPort   = 3002

	// Buffered daemon inputs. Light samples arrive many times per revolution.
	eventQueueSize     = 256
	broadcastQueueSize = 64

	// snapshotTimeout bounds the round-trip through the daemon loop for HTTP/WS snapshot requests.
	snapshotTimeoutMS = 1000

	// maxRearmRounds keeps the revolution counter within 8 bits.
	maxRearmRounds = 255
)
