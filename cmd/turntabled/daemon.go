package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - Sensor events from all sources arrive on one channel and are reduced one at a
//     time, in arrival order. Light samples delivered before the hall tick that
//     closes their revolution are therefore reduced before it.
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only place that executes side effects.
//
// ============================================================================

// runDaemon reduces events until ctx is canceled or events is closed.
//
// broadcasts may be nil (no websocket publishing). Sends to it never block; if the
// broadcaster lags, broadcasts are dropped with a warning.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	var cmdQueue []Command

	reduce := func(ev Event) {
		rr := Reduce(state, ev)
		if rr.State != nil {
			state = rr.State
		}
		cmdQueue = append(cmdQueue, rr.Commands...)

		for _, b := range rr.Broadcasts {
			if c, ok := b.(BroadcastInhibitChanged); ok {
				logger.Info("release gate changed", "inhibited", c.Inhibited,
					"fine_samples", state.FineSamples, "revolution_ticks", state.RevolutionTicks)
			}
			if broadcasts == nil {
				continue
			}
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full, dropping state broadcast")
			}
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]
			runEffect(cmd, logger)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			reduce(TimedEvent{Event: ev, At: time.Now()})
			flushCommands()
		}
	}
}
