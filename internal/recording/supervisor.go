// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streamkeep/streamkeep/internal/fsutil"
	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/metrics"
	"github.com/streamkeep/streamkeep/internal/persistence"
	"github.com/streamkeep/streamkeep/internal/prober"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/transcoder"
)

// Deps bundles the collaborators a Supervisor needs. They are shared
// across every Supervisor instance in the process.
type Deps struct {
	Prober         prober.Prober
	Settings       func() settings.Settings
	Store          *persistence.Store[persistence.RecordingsDocument]
	Stitcher       *transcoder.Stitcher
	NewRunner      func(binPath string, killTimeout time.Duration) *transcoder.Runner
	OnSweepTrigger func() // invoked once after a terminal finalize; nil-safe
	LogsDir        string // directory for per-recording log files; "" disables them
}

// Supervisor drives exactly one recording from scheduling through
// finalization.
type Supervisor struct {
	id string

	deps Deps

	mu            sync.Mutex
	name          string
	url           string
	startTime     time.Time
	durationSec   int
	initialStart  time.Time
	attempts      []string
	status        Status
	ignoreProbe   bool
	errorMessage  string
	noLiveSource  bool
	progress      transcoder.Progress
	currentRunner *transcoder.Runner
	retryCount    int
	armTimer      *time.Timer

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	doneOnce  sync.Once
	done      chan struct{}
}

// NewSupervisor constructs a Supervisor for a scheduled-but-not-started
// recording.
func NewSupervisor(rec persistence.Recording, deps Deps) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		id:          rec.ID,
		deps:        deps,
		name:        rec.Name,
		url:         rec.RTSPURL,
		startTime:   rec.StartTime,
		durationSec: rec.Duration,
		status:      StatusScheduled,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// ID returns the recording's identity.
func (s *Supervisor) ID() string { return s.id }

// Status returns the current derived status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a point-in-time view of the supervisor's observable
// state, for the Command Surface.
type Snapshot struct {
	ID           string
	Name         string
	URL          string
	StartTime    time.Time
	DurationSec  int
	Status       Status
	Progress     transcoder.Progress
	ErrorMessage string
	IgnoreProbe  bool
}

// Snapshot returns the current observable state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.id,
		Name:         s.name,
		URL:          s.url,
		StartTime:    s.startTime,
		DurationSec:  s.durationSec,
		Status:       s.status,
		Progress:     s.progress,
		ErrorMessage: s.errorMessage,
		IgnoreProbe:  s.ignoreProbe,
	}
}

func (s *Supervisor) transition(event Event) (Status, error) {
	s.mu.Lock()
	from := s.status
	s.mu.Unlock()

	reason := DecisionFor(from, event)
	if reason != ReasonAllowed {
		return from, fmt.Errorf("recording: event %s rejected in status %s: %s", event, from, reason)
	}
	to, ok := TransitionFor(from, event)
	if !ok {
		return from, fmt.Errorf("recording: no transition for event %s in status %s", event, from)
	}

	s.mu.Lock()
	s.status = to
	s.mu.Unlock()

	metrics.SupervisorTransitions.WithLabelValues(string(from), string(to)).Inc()
	logger := log.WithComponent("recording")
	logger.Debug().
		Str("recording_id", s.id).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("event", string(event)).
		Msg("recording status transition")
	return to, nil
}

// Start performs the scheduled → starting transition immediately and
// begins the supervisor's run loop, which itself waits out whatever delay
// remains until startTime before probing. It is the transition an explicit
// "start recording" command performs, and it is also what Arm's countdown
// calls once startTime elapses — whichever of the two happens first wins;
// the second is a no-op thanks to startOnce. Start returns an error if the
// recording is not in StatusScheduled.
func (s *Supervisor) Start(ctx context.Context) error {
	var startErr error
	ran := false
	s.startOnce.Do(func() {
		ran = true
		if _, err := s.transition(EventStart); err != nil {
			startErr = err
			return
		}
		s.mu.Lock()
		s.initialStart = s.startTime
		delay := time.Until(s.startTime)
		s.mu.Unlock()

		go s.run(delay)
	})
	if !ran {
		return fmt.Errorf("recording: start rejected: status is %s, not %s", s.Status(), StatusScheduled)
	}
	if startErr != nil {
		return startErr
	}
	return nil
}

// Arm schedules an automatic Start for when startTime elapses, while the
// recording remains StatusScheduled until then. It is called once a new
// recording is registered, so it begins capturing at its scheduled time
// without requiring an explicit "start recording" command; that command
// (surfaced as StartRecording) can still fire the same transition early by
// calling Start directly.
func (s *Supervisor) Arm() {
	s.rearm()
}

// rearm replaces any pending scheduled-start timer with one reflecting the
// current startTime. It is used both by Arm's initial countdown and by
// Update when startTime changes while still scheduled.
func (s *Supervisor) rearm() {
	s.mu.Lock()
	if s.armTimer != nil {
		s.armTimer.Stop()
	}
	delay := time.Until(s.startTime)
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	s.armTimer = timer
	s.mu.Unlock()

	go func() {
		select {
		case <-timer.C:
			_ = s.Start(context.Background())
		case <-s.ctx.Done():
		}
	}()
}

// Stop cancels the recording. It is idempotent: stopping an already
// terminal recording is a no-op. A recording still StatusScheduled (either
// never armed or armed but not yet due) is finalized as cancelled
// directly and has its countdown released via cancel, since its run loop
// goroutine (and the Done signal it closes) does not exist yet.
func (s *Supervisor) Stop(ctx context.Context) {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	if status.IsTerminal() {
		return
	}
	if status == StatusScheduled {
		s.transition(EventStop)
		cancelled := false
		s.persist(ctx, &cancelled, "", "cancelled")
		s.cancel()
		s.closeDone()
		return
	}
	s.cancel()
}

func (s *Supervisor) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Update mutates name/URL/startTime/duration while the recording is still
// StatusScheduled. Changing startTime re-arms the scheduled-start
// countdown so Arm's automatic Start fires against the new time.
func (s *Supervisor) Update(name, url string, startTime time.Time, durationSec int) error {
	s.mu.Lock()
	if s.status != StatusScheduled {
		s.mu.Unlock()
		return fmt.Errorf("recording: cannot update recording in status %s", s.status)
	}
	if name != "" {
		s.name = name
	}
	if url != "" {
		s.url = url
	}
	startTimeChanged := false
	if !startTime.IsZero() {
		s.startTime = startTime
		startTimeChanged = true
	}
	if durationSec > 0 {
		s.durationSec = durationSec
	}
	s.mu.Unlock()

	if startTimeChanged {
		s.rearm()
	}
	return nil
}

// SetIgnoreProbe toggles whether the supervisor skips liveness probing.
func (s *Supervisor) SetIgnoreProbe(ignore bool) {
	s.mu.Lock()
	s.ignoreProbe = ignore
	s.mu.Unlock()
}

// Done returns a channel closed once the supervisor reaches a terminal
// status and has finished finalizing.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

func (s *Supervisor) remaining(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := now.Sub(s.initialStart)
	total := time.Duration(s.durationSec) * time.Second
	left := total - elapsed
	if left < 0 {
		left = 0
	}
	return left
}

// isoTimestamp formats t as a filesystem-safe ISO 8601 stamp: colons
// would be rejected by some filesystems, so they are replaced with "-".
func isoTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05Z"), ":", "-")
}

func (s *Supervisor) outputPathFor(cfg settings.Settings, at time.Time, attempt int) (string, error) {
	ext := transcoder.Ext(cfg.Container)
	slug := fsutil.Slugify(s.name, s.id)
	rel := fmt.Sprintf("%s_%s_attempt%d.%s", slug, isoTimestamp(at), attempt, ext)
	return fsutil.ConfineRelPath(cfg.OutputDir, rel)
}

// finalPathFor builds the canonical final output path, keyed by the
// recording's id rather than a timestamp so it is deterministic: the same
// recording always stitches to the same final path regardless of how long
// finalization took or how many attempts preceded it.
func (s *Supervisor) finalPathFor(cfg settings.Settings) (string, error) {
	ext := transcoder.Ext(cfg.Container)
	slug := fsutil.Slugify(s.name, s.id)
	rel := fmt.Sprintf("%s_%s.%s", slug, s.id, ext)
	return fsutil.ConfineRelPath(cfg.OutputDir, rel)
}

// logPathFor returns the per-recording log file path under the logs
// directory, stable across attempts so retries append to the same file.
// It returns "" without error when no logs directory is configured.
func (s *Supervisor) logPathFor() (string, error) {
	if s.deps.LogsDir == "" {
		return "", nil
	}
	slug := fsutil.Slugify(s.name, s.id)
	rel := fmt.Sprintf("%s_%s.log", slug, s.id)
	return fsutil.ConfineRelPath(s.deps.LogsDir, rel)
}
