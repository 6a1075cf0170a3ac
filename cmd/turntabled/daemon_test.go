package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"turntablegate/inhibitor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type daemonHarness struct {
	events     chan Event
	broadcasts chan StateBroadcast
	state      *DaemonState
	cancel     context.CancelFunc
	done       chan struct{}
}

func startDaemon(t *testing.T, broadcastBuf int) *daemonHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &daemonHarness{
		events: make(chan Event, 16),
		state:  NewDaemonState(inhibitor.Config{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if broadcastBuf > 0 {
		h.broadcasts = make(chan StateBroadcast, broadcastBuf)
	}
	go func() {
		defer close(h.done)
		runDaemon(ctx, h.events, h.state, h.broadcasts, discardLogger())
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *daemonHarness) snapshot(t *testing.T) StateSnapshot {
	t.Helper()
	reply := make(chan StateSnapshot, 1)
	h.events <- RequestStateSnapshot{Reply: reply}
	select {
	case snap := <-reply:
		return snap
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for snapshot")
		return StateSnapshot{}
	}
}

func TestDaemon_EventsReducedInArrivalOrder(t *testing.T) {
	h := startDaemon(t, 8)

	// Boot arm, two ticks release, then a 10% change re-arms.
	h.events <- FineSpeedSample{PeriodUS: 1000}
	h.events <- RevolutionTick{}
	h.events <- RevolutionTick{}
	h.events <- FineSpeedSample{PeriodUS: 1100}

	snap := h.snapshot(t)
	if !snap.Inhibited {
		t.Fatalf("expected inhibited after period change")
	}
	if snap.FineSamples != 2 || snap.RevolutionTicks != 2 {
		t.Fatalf("unexpected counters %+v", snap)
	}
	if snap.ChangedAt.IsZero() {
		t.Fatalf("expected ChangedAt stamped by the daemon loop")
	}

	// armed, released, armed
	want := []bool{true, false, true}
	for i, w := range want {
		select {
		case b := <-h.broadcasts:
			c, ok := b.(BroadcastInhibitChanged)
			if !ok {
				t.Fatalf("broadcast %d: got %T", i, b)
			}
			if c.Inhibited != w {
				t.Fatalf("broadcast %d: inhibited=%v, want %v", i, c.Inhibited, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for broadcast %d", i)
		}
	}
}

func TestDaemon_GateReadableWhileLoopRuns(t *testing.T) {
	h := startDaemon(t, 0)

	h.events <- FineSpeedSample{PeriodUS: 2000}
	waitUntil(t, time.Second, h.state.Gate.IsInhibited, "gate not armed by boot sample")

	h.events <- RevolutionTick{}
	h.events <- RevolutionTick{}
	waitUntil(t, time.Second, func() bool { return !h.state.Gate.IsInhibited() }, "gate not released after two ticks")
}

func TestDaemon_FullBroadcastQueueDoesNotBlock(t *testing.T) {
	h := startDaemon(t, 1)

	// Every cycle arms then releases the gate. Nobody drains broadcasts.
	for i := 0; i < 4; i++ {
		h.events <- FineSpeedSample{PeriodUS: int64(1000 * (i + 1))}
		h.events <- RevolutionTick{}
		h.events <- RevolutionTick{}
	}

	snap := h.snapshot(t)
	if snap.FineSamples != 4 || snap.RevolutionTicks != 8 {
		t.Fatalf("daemon stalled: %+v", snap)
	}
}

func TestDaemon_StopsWhenEventsClosed(t *testing.T) {
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(context.Background(), events, NewDaemonState(inhibitor.Config{}), nil, discardLogger())
	}()

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop on closed events channel")
	}
}

func TestRunEffect_SnapshotReplyNeverBlocks(t *testing.T) {
	full := make(chan StateSnapshot, 1)
	full <- StateSnapshot{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runEffect(CmdPublishStateSnapshot{Reply: full}, discardLogger())
		runEffect(CmdPublishStateSnapshot{}, discardLogger())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runEffect blocked")
	}
}
