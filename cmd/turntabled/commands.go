package main

import (
	"fmt"
	"time"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents a side effect to be executed by the daemon loop (effects.go).
type Command interface {
	commandMarker()
	String() string
}

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (c CmdPublishStateSnapshot) String() string {
	return fmt.Sprintf("CmdPublishStateSnapshot(inhibited=%v)", c.Snapshot.Inhibited)
}

// ==============================
// Broadcasts (state push)
// ==============================

// StateBroadcast is an externally consumable state change emitted by the reducer.
// The websocket broadcaster (state_ws.go) fans these out to clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastInhibitChanged is emitted exactly when the gate flag flips.
type BroadcastInhibitChanged struct {
	Inhibited bool
	At        time.Time
}

func (BroadcastInhibitChanged) broadcastMarker() {}
