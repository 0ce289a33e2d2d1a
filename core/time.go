package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) Time {
	pollDelay := cfg.EventPollDelay
	if pollDelay <= 0 {
		pollDelay = 10
	}

	return Time{
		eventTicker: time.NewTicker(time.Duration(pollDelay) * time.Millisecond),
	}
}

// Time contains the host event loop ticker. Frame pacing itself lives
// in the runtime: TimeConfiguration.FramePeriod feeds it the interval.
type Time struct {
	eventTicker *time.Ticker
}

// EventTicker gets the initialized event ticker for the event loop
func (t *Time) EventTicker() *time.Ticker {
	return t.eventTicker
}

// Stop halts the ticker
func (t *Time) Stop() {
	t.eventTicker.Stop()
}
