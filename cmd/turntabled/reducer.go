package main

import (
	"time"

	"turntablegate/inhibitor"
)

// This file implements the reducer:
//
//   - Events: sensor observations and snapshot requests (events.go)
//   - Commands: side effects requested by the reducer (commands.go)
//   - Broadcasts: state changes for websocket clients (commands.go)
//
// The reducer performs no I/O. It owns the gate through DaemonState and feeds it
// sensor events strictly in the order the daemon loop received them, which is what
// gives the re-arm-then-countdown semantics their meaning.

// ReduceResult is the output of Reduce(): next state, commands to execute and
// broadcasts to publish.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
func Reduce(s *DaemonState, e Event) ReduceResult {
	if s == nil {
		s = NewDaemonState(inhibitor.Config{})
	}
	if s.Gate == nil {
		s.Gate = inhibitor.New(inhibitor.Config{})
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		at = te.At
	}

	var cmds []Command
	var bcasts []StateBroadcast

	switch ev := e.(type) {
	case FineSpeedSample:
		s.FineSamples++
		s.Gate.OnFineSpeedSample(ev.Period())

	case RevolutionTick:
		s.RevolutionTicks++
		s.Gate.OnRevolutionTick(ev.Period())

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(),
		})

	default:
		// QueryInhibited and unknown events: no-op.
	}

	// Publish flips only; re-arming while already inhibited is not a state change.
	if inhibited := s.Gate.IsInhibited(); inhibited != s.Inhibited {
		s.Inhibited = inhibited
		s.ChangedAt = at
		bcasts = append(bcasts, BroadcastInhibitChanged{Inhibited: inhibited, At: at})
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcasts,
	}
}
