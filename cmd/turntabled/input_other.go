//go:build !linux

package main

import (
	"context"
	"os"
)

// startSensorReaders spawns one blocking reader goroutine per device.
func startSensorReaders(ctx context.Context, files []*os.File, events chan<- rawEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(ctx, f.Name(), f, events, readErr)
	}
}
