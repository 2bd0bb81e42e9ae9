// Package status provides a thread-safe status tracker for the fret-sensor daemon.
// It is written by the control loop and read by HTTP handlers and system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/fret-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Threshold   int
	IntervalMs  int64
	HeartbeatMs int64
	Store       string // "mqtt" or "rtdb"
	Target      string // broker address or database URL
	HTTPAddr    string
}

// ChannelStatus is the last observed state of one channel.
type ChannelStatus struct {
	Index    int
	Pin      int
	Actuated bool
	Sampled  bool // false until the first executed cycle
	Raw      int
	State    logic.State
	Outcome  logic.Outcome // outcome of the last executed cycle
	LastErr  string        // reason of the most recent failed publish
}

// Snapshot is a point-in-time view of daemon state.
// It is safe to use after the lock is released.
type Snapshot struct {
	Channels     []ChannelStatus
	Counts       logic.Counts
	LastCycle    time.Time
	SessionReady bool
	StartTime    time.Time
	Now          time.Time
	Network      *NetworkInfo
	Config       Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker for the given channels.
func NewTracker(startTime time.Time, cfg Config, channels []logic.Channel) *Tracker {
	chs := make([]ChannelStatus, len(channels))
	for i, ch := range channels {
		chs[i] = ChannelStatus{Index: ch.Index, Pin: ch.Pin, Actuated: ch.Actuated}
	}
	return &Tracker{
		snap: Snapshot{
			Channels:  chs,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the outcome of an executed cycle and the running totals.
// Skipped cycles only refresh the totals.
func (t *Tracker) Update(report logic.Report, counts logic.Counts) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts = counts
	if !report.Ran() {
		return
	}
	t.snap.LastCycle = report.Time
	for _, r := range report.Channels {
		for i := range t.snap.Channels {
			cs := &t.snap.Channels[i]
			if cs.Index != r.Channel.Index {
				continue
			}
			cs.Sampled = true
			cs.Raw = r.Raw
			cs.State = logic.StateOf(r.On)
			cs.Outcome = r.Outcome
			if r.Err != nil {
				cs.LastErr = r.Err.Error()
			}
		}
	}
}

// SetSessionReady sets whether the remote store session is ready.
func (t *Tracker) SetSessionReady(ready bool) {
	t.mu.Lock()
	t.snap.SessionReady = ready
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]ChannelStatus(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
