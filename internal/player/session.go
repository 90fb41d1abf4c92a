// Package player implements the client-side watch-session tracker: a small
// per-playback state machine that accumulates playback signal and flushes
// full-state snapshots to the watch-progress store. All methods are meant to
// be called from the single playback event loop that owns the session; only
// the network flush leaves that loop, and it carries an immutable snapshot.
package player

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	// resumeWindow is how long an inactive session stays resumable.
	resumeWindow = 30 * time.Minute
	// seekThresholdSeconds separates normal forward playback from a seek:
	// a time-update delta is counted as watch time only when it is inside
	// (0, 2) seconds. A hard threshold, never smoothed.
	seekThresholdSeconds = 2.0
	// completionPercent marks the session complete and freezes max progress.
	completionPercent = 90.0
	// saveIntervalSeconds bounds data loss from an ungraceful exit: a save
	// is emitted every 5 accumulated watch seconds while playing.
	saveIntervalSeconds = 5.0
	// spuriousEndWindow suppresses end events racing with live playback.
	spuriousEndWindow = 2 * time.Second
	// defaultHeartbeatInterval paces the telemetry progress event, which is
	// independent of the save cadence.
	defaultHeartbeatInterval = 30 * time.Second
)

// State of a session's playback lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateEnded     State = "ended"
	StateCompleted State = "completed"
)

// Snapshot is the immutable full-state view of a session handed to sinks.
// Sinks always receive accumulated totals, never deltas, so reordered or
// repeated deliveries cannot corrupt the server-side record.
type Snapshot struct {
	SessionID       string
	ViewerID        string
	AssetID         string
	State           State
	PositionSeconds float64
	DurationSeconds float64
	TotalWatchTime  float64
	MaxProgress     float64
	PlayCount       int
	Completed       bool
	StartedAt       time.Time
	LastActiveAt    time.Time
}

// FurthestSeconds converts the furthest-reached percentage back to seconds,
// the value the progress store treats as authoritative.
func (s Snapshot) FurthestSeconds() float64 {
	return s.MaxProgress / 100 * s.DurationSeconds
}

// ProgressSink receives full-state saves. Implementations must tolerate
// duplicate and reordered deliveries.
type ProgressSink interface {
	SaveProgress(snap Snapshot) error
}

// TelemetrySink receives heartbeat progress events for the analytics
// collaborator. Best-effort; failures are invisible to playback.
type TelemetrySink interface {
	ProgressEvent(snap Snapshot)
}

// Session accumulates one playback attempt. It is owned by the playback
// event loop; no method is safe for concurrent use.
type Session struct {
	id              string
	viewerID        string
	assetID         string
	durationSeconds float64

	state          State
	totalWatchTime float64
	maxProgress    float64
	playCount      int
	completed      bool

	positionSeconds    float64
	lastReportedTime   float64
	lastSavedWatchTime float64

	startedAt       time.Time
	lastActiveAt    time.Time
	lastHeartbeatAt time.Time

	tracker *Tracker
}

// Tracker owns the live sessions of one client instance and decides whether
// a new playback resumes a prior session or starts fresh.
type Tracker struct {
	sessions          map[string]*Session
	sink              ProgressSink
	telemetry         TelemetrySink
	heartbeatInterval time.Duration
	now               func() time.Time
	log               *log.Helper
}

// NewTracker creates a tracker flushing to sink. telemetry may be nil.
func NewTracker(sink ProgressSink, telemetry TelemetrySink, logger log.Logger) *Tracker {
	return &Tracker{
		sessions:          make(map[string]*Session),
		sink:              sink,
		telemetry:         telemetry,
		heartbeatInterval: defaultHeartbeatInterval,
		now:               time.Now,
		log:               log.NewHelper(logger),
	}
}

// SetHeartbeatInterval overrides the telemetry cadence.
func (t *Tracker) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		t.heartbeatInterval = d
	}
}

// Start returns the session for (viewerID, assetID): an existing one when it
// is still resumable, a fresh one otherwise. A resumed session keeps its id
// and accumulated totals. Ended or completed sessions are never resumed.
// A fresh session is not flushed anywhere until its first play event.
func (t *Tracker) Start(viewerID, assetID string, durationSeconds float64) *Session {
	key := viewerID + "\x00" + assetID
	now := t.now()

	if existing, ok := t.sessions[key]; ok {
		resumable := existing.state != StateEnded && existing.state != StateCompleted &&
			now.Sub(existing.lastActiveAt) <= resumeWindow
		if resumable {
			t.log.Debugf("resuming session %s for asset %s", existing.id, assetID)
			return existing
		}
	}

	s := &Session{
		id:              uuid.New().String(),
		viewerID:        viewerID,
		assetID:         assetID,
		durationSeconds: durationSeconds,
		state:           StateIdle,
		startedAt:       now,
		lastActiveAt:    now,
		lastHeartbeatAt: now,
		tracker:         t,
	}
	t.sessions[key] = s
	return s
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// TotalWatchTime returns accumulated genuine watch seconds.
func (s *Session) TotalWatchTime() float64 { return s.totalWatchTime }

// MaxProgress returns the furthest point reached, in percent.
func (s *Session) MaxProgress() float64 { return s.maxProgress }

// PlayCount returns how many play events this session saw.
func (s *Session) PlayCount() int { return s.playCount }

// Completed reports whether the 90% threshold was crossed.
func (s *Session) Completed() bool { return s.completed }

// TrackPlay handles a play event.
func (s *Session) TrackPlay() {
	if s.state == StateEnded || s.state == StateCompleted {
		return
	}
	first := s.state == StateIdle
	s.state = StatePlaying
	s.playCount++
	s.touch()
	if first {
		// First play persists the session.
		s.flush()
	}
}

// TrackTimeUpdate handles a time-update event carrying the current playback
// position. Watch time only accumulates for small forward deltas; a jump is
// a seek and contributes nothing.
func (s *Session) TrackTimeUpdate(position float64) {
	if s.state != StatePlaying {
		return
	}

	delta := position - s.lastReportedTime
	if delta > 0 && delta < seekThresholdSeconds {
		s.totalWatchTime += delta
	}
	s.lastReportedTime = position
	s.positionSeconds = position
	s.touch()

	if s.durationSeconds > 0 {
		progress := position / s.durationSeconds * 100
		if progress > s.maxProgress {
			s.maxProgress = progress
		}
		if !s.completed && progress >= completionPercent {
			s.complete()
			return
		}
	}

	if s.totalWatchTime-s.lastSavedWatchTime >= saveIntervalSeconds {
		s.flush()
	}

	s.heartbeat()
}

// TrackPause handles a pause event.
func (s *Session) TrackPause() {
	if s.state != StatePlaying {
		return
	}
	s.state = StatePaused
	s.touch()
	s.flush()
}

// TrackEnd handles an ended event. An end arriving within 2 seconds of live
// activity while still playing is presumed to be a spurious event racing
// with ongoing playback and is dropped.
func (s *Session) TrackEnd() {
	if s.state == StateEnded || s.state == StateCompleted {
		return
	}
	if s.state == StatePlaying && s.tracker.now().Sub(s.lastActiveAt) < spuriousEndWindow {
		s.tracker.log.Debugf("ignoring spurious end for session %s", s.id)
		return
	}
	s.state = StateEnded
	s.touch()
	s.flush()
}

// complete marks the session finished and freezes max progress at 100.
func (s *Session) complete() {
	s.completed = true
	s.maxProgress = 100
	s.state = StateCompleted
	s.flush()
}

func (s *Session) touch() {
	s.lastActiveAt = s.tracker.now()
}

// heartbeat emits the telemetry progress event on its own cadence.
func (s *Session) heartbeat() {
	if s.tracker.telemetry == nil {
		return
	}
	now := s.tracker.now()
	if now.Sub(s.lastHeartbeatAt) < s.tracker.heartbeatInterval {
		return
	}
	s.lastHeartbeatAt = now
	s.tracker.telemetry.ProgressEvent(s.snapshot())
}

// flush hands a snapshot to the sink without blocking the event loop.
// Failures are logged and swallowed: a transient network error must never
// interrupt playback, and the next natural flush carries the same totals.
func (s *Session) flush() {
	s.lastSavedWatchTime = s.totalWatchTime
	snap := s.snapshot()
	t := s.tracker
	go func() {
		if err := t.sink.SaveProgress(snap); err != nil {
			t.log.Warnf("progress flush failed for session %s: %v", snap.SessionID, err)
		}
	}()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		SessionID:       s.id,
		ViewerID:        s.viewerID,
		AssetID:         s.assetID,
		State:           s.state,
		PositionSeconds: s.positionSeconds,
		DurationSeconds: s.durationSeconds,
		TotalWatchTime:  s.totalWatchTime,
		MaxProgress:     s.maxProgress,
		PlayCount:       s.playCount,
		Completed:       s.completed,
		StartedAt:       s.startedAt,
		LastActiveAt:    s.lastActiveAt,
	}
}
