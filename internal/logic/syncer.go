package logic

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Options configures a Syncer.
type Options struct {
	Channels  []Channel
	Threshold int           // 0 means DefaultThreshold
	Interval  time.Duration // 0 means DefaultInterval

	Sampler  Sampler
	Actuator Actuator // may be nil when no channel is actuated
	Store    Store
	Session  Session // nil means always ready

	Logger    *zap.Logger
	StartTime time.Time
}

// Syncer owns the remembered state of every channel and runs the gated
// sample/actuate/publish cycle. It is not safe for concurrent use.
type Syncer struct {
	channels  []Channel
	threshold int
	interval  time.Duration

	sampler  Sampler
	actuator Actuator
	store    Store
	session  Session
	logger   *zap.Logger

	states    []bool
	cycled    bool
	lastCycle time.Time

	startTime     time.Time
	lastHeartbeat time.Time
	counts        Counts
}

// NewSyncer creates a Syncer with every channel's remembered state set to false.
func NewSyncer(opts Options) *Syncer {
	s := &Syncer{
		channels:      append([]Channel(nil), opts.Channels...),
		threshold:     opts.Threshold,
		interval:      opts.Interval,
		sampler:       opts.Sampler,
		actuator:      opts.Actuator,
		store:         opts.Store,
		session:       opts.Session,
		logger:        opts.Logger,
		startTime:     opts.StartTime,
		lastHeartbeat: opts.StartTime,
	}
	if s.threshold == 0 {
		s.threshold = DefaultThreshold
	}
	if s.interval == 0 {
		s.interval = DefaultInterval
	}
	if s.session == nil {
		s.session = SessionFunc(func() bool { return true })
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	slots := 0
	for _, ch := range s.channels {
		if ch.Index+1 > slots {
			slots = ch.Index + 1
		}
	}
	s.states = make([]bool, slots)
	return s
}

// StateFor maps a raw reading to a channel state. Equality maps to OFF.
func StateFor(raw, threshold int) bool {
	return raw < threshold
}

// Cycle runs one gated cycle at time now. When the session is not ready or
// the interval has not elapsed since the last executed cycle, nothing is
// sampled, driven or published and the returned report carries the skip
// reason.
func (s *Syncer) Cycle(ctx context.Context, now time.Time) Report {
	if !s.session.Ready() {
		return Report{Time: now, Skipped: SkipNotReady}
	}
	if s.cycled && now.Sub(s.lastCycle) < s.interval {
		return Report{Time: now, Skipped: SkipInterval}
	}
	s.cycled = true
	s.lastCycle = now
	s.counts.Cycles++

	report := Report{Time: now, Channels: make([]ChannelResult, 0, len(s.channels))}
	for _, ch := range s.channels {
		report.Channels = append(report.Channels, s.processChannel(ctx, ch))
	}
	return report
}

// processChannel samples, actuates and, on a transition, publishes one channel.
func (s *Syncer) processChannel(ctx context.Context, ch Channel) ChannelResult {
	raw := s.sampler.Sample(ch)
	on := StateFor(raw, s.threshold)
	s.logger.Debug("sample",
		zap.Int("channel", ch.Index),
		zap.Int("pin", ch.Pin),
		zap.Int("raw", raw),
		zap.Bool("on", on))

	// Level-driven: the LED follows the state every cycle, not just on edges.
	if ch.Actuated && s.actuator != nil {
		if err := s.actuator.Drive(on); err != nil {
			s.logger.Warn("led drive failed", zap.Int("channel", ch.Index), zap.Error(err))
		}
	}

	result := ChannelResult{Channel: ch, Raw: raw, On: on}
	if on == s.states[ch.Index] {
		s.logger.Debug("no change", zap.Int("channel", ch.Index))
		result.Outcome = OutcomeUnchanged
		return result
	}

	req := WriteRequest{Path: ch.Path(), Value: on}
	s.counts.Transitions++
	if err := s.store.PutBool(ctx, req.Path, req.Value); err != nil {
		s.logger.Warn("publish failed",
			zap.String("path", req.Path),
			zap.Bool("value", req.Value),
			zap.Error(err))
		s.counts.Failed++
		result.Outcome = OutcomeFailed
		result.Err = err
	} else {
		s.logger.Info("published",
			zap.String("path", req.Path),
			zap.String("state", string(StateOf(req.Value))))
		s.counts.Published++
		result.Outcome = OutcomePublished
	}

	// Committed even when the publish failed: no retry until the sensor
	// crosses the threshold again.
	s.states[ch.Index] = on
	return result
}

// Channels returns the configured channels in index order.
func (s *Syncer) Channels() []Channel {
	return append([]Channel(nil), s.channels...)
}

// States returns a copy of the remembered state of every channel.
func (s *Syncer) States() []bool {
	return append([]bool(nil), s.states...)
}

// Threshold returns the raw cutoff in use.
func (s *Syncer) Threshold() int {
	return s.threshold
}

// LastCycle returns the time of the last executed cycle and whether any
// cycle has executed yet.
func (s *Syncer) LastCycle() (time.Time, bool) {
	return s.lastCycle, s.cycled
}

// CountsSnapshot returns the totals since startup.
func (s *Syncer) CountsSnapshot() Counts {
	return s.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (s *Syncer) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(s.lastHeartbeat) < interval {
		return nil
	}

	s.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(s.startTime),
		Counts:    s.counts,
	}
}
