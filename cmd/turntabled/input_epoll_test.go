//go:build linux

package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startEpollReader(t *testing.T, ctx context.Context, events chan rawEvent) (*os.File, <-chan struct{}) {
	t.Helper()
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		pr.Close()
		pw.Close()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		readInputEventsEpoll(ctx, []*os.File{pr}, events, make(chan error, 1))
	}()
	return pw, done
}

func TestReadInputEventsEpoll_DeliversThenStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan rawEvent, 1)
	pw, done := startEpollReader(t, ctx, events)

	want := inputEvent{Type: EV_MSC, Code: MSC_PULSELED, Value: 1000}
	_, err := pw.Write(encodeInputEvents(t, want).Bytes())
	require.NoError(t, err)

	select {
	case got := <-events:
		require.Equal(t, want, got.Event)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}

	// Idle in epoll_wait: cancellation alone must wake it.
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("epoll reader still running after cancel")
	}
}

func TestReadInputEventsEpoll_StopsOnCancelWhileSendBlocked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan rawEvent)
	pw, done := startEpollReader(t, ctx, events)

	_, err := pw.Write(encodeInputEvents(t, inputEvent{Type: EV_MSC, Code: MSC_RAW, Value: 1}).Bytes())
	require.NoError(t, err)

	// Give the reader time to block on the undrained channel.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("epoll reader blocked on send after cancel")
	}
}
