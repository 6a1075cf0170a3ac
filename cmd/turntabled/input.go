package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// rawEvent is an input event tagged with the device it was read from.
type rawEvent struct {
	Device string
	Event  inputEvent
}

// decodeInputEvent parses one little-endian input_event from buf.
func decodeInputEvent(reader *bytes.Reader, buf []byte) (inputEvent, error) {
	reader.Reset(buf)
	var ev inputEvent
	err := binary.Read(reader, binary.LittleEndian, &ev)
	return ev, err
}

// readInputEvents reads input events from one device and sends them to a channel.
// This runs in a dedicated goroutine and blocks on read operations; closing the
// device unblocks a pending read. Sends give up once ctx is canceled.
func readInputEvents(ctx context.Context, device string, r io.Reader, events chan<- rawEvent, readErr chan<- error) {
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			reportReadErr(ctx, readErr, err)
			return
		}

		ev, err := decodeInputEvent(reader, buf)
		if err != nil {
			// Skip malformed events
			continue
		}

		select {
		case events <- rawEvent{Device: device, Event: ev}:
		case <-ctx.Done():
			return
		}
	}
}

// reportReadErr delivers a reader failure unless shutdown already started.
// Only the first failure is consumed; later readers exit on ctx.
func reportReadErr(ctx context.Context, readErr chan<- error, err error) {
	select {
	case readErr <- err:
	case <-ctx.Done():
	}
}
