// Package inhibitor gates ball release while the turntable period is unstable.
//
// Two sensors feed the gate. The light sensor reports many period estimates per
// revolution and is used to detect speed changes; the hall sensor reports once per
// revolution and is used to count down how long release stays inhibited, because the
// release time calculations downstream are tied to the hall sensor.
//
// After a change is detected, release stays inhibited for RearmRounds hall revolutions.
// Another change during that time resets the countdown.
package inhibitor

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

const (
	// DefaultThreshold is the relative period change, measured against the newest
	// sample, above which inhibition starts.
	DefaultThreshold = 0.08

	// DefaultRearmRounds is the number of hall revolutions inhibition lasts.
	// The hall sensor only changes state twice per revolution, so one revolution
	// is not enough for the downstream estimate to settle.
	DefaultRearmRounds = 2
)

// Config tunes an Inhibitor. Zero fields take the defaults.
type Config struct {
	Threshold   float64
	RearmRounds uint32

	// Logger, if set, receives a debug record each time inhibition is armed.
	Logger *slog.Logger
}

// Inhibitor decides whether ball release is currently inhibited.
//
// OnFineSpeedSample and OnRevolutionTick must be called from a single goroutine.
// IsInhibited may be called from any goroutine.
//
// The zero value is ready to use with the default configuration.
type Inhibitor struct {
	threshold   float64
	rearmRounds uint32
	logger      *slog.Logger

	// lastPeriod is the previous light sensor sample. Zero until the first sample,
	// which guarantees the first sample after start arms inhibition.
	lastPeriod time.Duration

	// remaining is the number of hall revolutions release stays inhibited for.
	remaining atomic.Uint32
}

// New creates an Inhibitor in the clear state.
func New(cfg Config) *Inhibitor {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.RearmRounds == 0 {
		cfg.RearmRounds = DefaultRearmRounds
	}
	return &Inhibitor{
		threshold:   cfg.Threshold,
		rearmRounds: cfg.RearmRounds,
		logger:      cfg.Logger,
	}
}

// OnFineSpeedSample detects speed changes from a light sensor period estimate.
//
// The deviation is relative to the new period, so the first call (lastPeriod == 0)
// yields a deviation of exactly 1. period must be positive.
func (in *Inhibitor) OnFineSpeedSample(period time.Duration) {
	deviation := math.Abs(float64(in.lastPeriod)-float64(period)) / float64(period)
	if deviation > in.thresholdOrDefault() {
		in.remaining.Store(in.rearmOrDefault())
		if in.logger != nil {
			in.logger.Debug("inhibition armed",
				"last_period", in.lastPeriod,
				"period", period,
				"deviation", deviation)
		}
	}
	in.lastPeriod = period
}

// OnRevolutionTick counts down one inhibited revolution. The hall sensor period is
// not used.
func (in *Inhibitor) OnRevolutionTick(time.Duration) {
	if n := in.remaining.Load(); n > 0 {
		in.remaining.Store(n - 1)
	}
}

// IsInhibited reports whether ball release must be skipped.
func (in *Inhibitor) IsInhibited() bool {
	return in.remaining.Load() != 0
}

func (in *Inhibitor) thresholdOrDefault() float64 {
	if in.threshold == 0 {
		return DefaultThreshold
	}
	return in.threshold
}

func (in *Inhibitor) rearmOrDefault() uint32 {
	if in.rearmRounds == 0 {
		return DefaultRearmRounds
	}
	return in.rearmRounds
}
