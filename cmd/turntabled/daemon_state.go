package main

import (
	"time"

	"turntablegate/inhibitor"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine mutates it. Other goroutines see the gate through
// the ReleaseGate interface (atomic read) or through StateSnapshot copies.
type DaemonState struct {
	// Gate is the release inhibitor fed by both sensors.
	Gate *inhibitor.Inhibitor

	// Inhibited is the gate flag as of the last reduced event. Used to detect flips.
	Inhibited bool

	// ChangedAt is when Inhibited last flipped (zero before the first flip).
	ChangedAt time.Time

	// Per-source counters of reduced events.
	FineSamples     uint64
	RevolutionTicks uint64
}

// ReleaseGate is the read-only view handed to the release scheduler's access paths
// (IPC query, HTTP). *inhibitor.Inhibitor implements it.
type ReleaseGate interface {
	IsInhibited() bool
}

// StateSnapshot is a copy of DaemonState safe to pass to other goroutines.
type StateSnapshot struct {
	Inhibited       bool      `json:"inhibited"`
	ChangedAt       time.Time `json:"changed_at"`
	FineSamples     uint64    `json:"fine_samples"`
	RevolutionTicks uint64    `json:"revolution_ticks"`
}

// NewDaemonState creates a state container with a fresh gate.
func NewDaemonState(cfg inhibitor.Config) *DaemonState {
	return &DaemonState{
		Gate: inhibitor.New(cfg),
	}
}

// Snapshot copies the externally visible state.
// This is intended to be called only by the daemon goroutine (single-owner).
func (s *DaemonState) Snapshot() StateSnapshot {
	return StateSnapshot{
		Inhibited:       s.Inhibited,
		ChangedAt:       s.ChangedAt,
		FineSamples:     s.FineSamples,
		RevolutionTicks: s.RevolutionTicks,
	}
}
