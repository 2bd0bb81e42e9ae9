// Package logic contains the flex sensor state machine and the
// change-propagation rules. Hardware and network collaborators are reached
// only through the interfaces declared here.
// Time is always injectable via time.Time parameters.
package logic

import (
	"context"
	"strconv"
	"time"
)

// DefaultThreshold is the raw cutoff used by the deployed sensors.
// Readings strictly below it are ON.
const DefaultThreshold = 2770

// DefaultInterval is the minimum spacing between executed cycles.
const DefaultInterval = 100 * time.Millisecond

// PathPrefix is prepended to the channel index to form the remote path.
const PathPrefix = "/frets/"

// State represents the logical state of a channel for display.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a boolean channel state to its display form.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Channel identifies one physical sensor.
type Channel struct {
	Index    int
	Pin      int
	Actuated bool // drives the local LED
}

// Path returns the remote store path for the channel, e.g. "/frets/0".
func (c Channel) Path() string {
	return PathPrefix + strconv.Itoa(c.Index)
}

// WriteRequest is a pending publish of one channel's new state.
type WriteRequest struct {
	Path  string
	Value bool
}

// Sampler reads the instantaneous raw value for a channel.
// Sampling never fails at this layer.
type Sampler interface {
	Sample(ch Channel) int
}

// Actuator drives the local LED. on=true means the LED is lit; the
// electrical inversion is the implementation's concern.
type Actuator interface {
	Drive(on bool) error
}

// Store is the remote path-addressed boolean store.
type Store interface {
	PutBool(ctx context.Context, path string, value bool) error
}

// Session reports whether the remote store can currently be written to.
type Session interface {
	Ready() bool
}

// SessionFunc adapts a function to the Session interface.
type SessionFunc func() bool

// Ready calls f.
func (f SessionFunc) Ready() bool { return f() }

// Outcome describes what happened to a channel during a cycle.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomePublished Outcome = "published"
	OutcomeFailed    Outcome = "failed"
)

// SkipReason explains why a cycle did not run.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipNotReady SkipReason = "not_ready"
	SkipInterval SkipReason = "interval"
)

// ChannelResult is the per-channel outcome of one executed cycle.
type ChannelResult struct {
	Channel Channel
	Raw     int
	On      bool
	Outcome Outcome
	Err     error // set when Outcome == OutcomeFailed
}

// Report summarises a call to Syncer.Cycle.
type Report struct {
	Time     time.Time
	Skipped  SkipReason
	Channels []ChannelResult
}

// Ran reports whether the cycle executed.
func (r Report) Ran() bool {
	return r.Skipped == SkipNone
}

// Counts tracks cycle and publish totals since startup.
type Counts struct {
	Cycles      int
	Transitions int
	Published   int
	Failed      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
