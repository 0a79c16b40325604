package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// Phase is the controller lifecycle state.
type Phase string

// Controller phases.
const (
	PhaseIdle          Phase = "idle"
	PhaseBrowsing      Phase = "browsing"
	PhaseJoined        Phase = "joined"
	PhaseCapturing     Phase = "capturing"
	PhaseManualConfirm Phase = "manual_confirm"
	PhaseRecording     Phase = "recording"
)

// Operator-facing status lines.
const (
	MsgLookAtCamera      = "Look at the camera"
	MsgRecognizing       = "Recognizing..."
	MsgNoFace            = "No face detected"
	MsgUnknownFace       = "Unknown face"
	MsgFaceMatched       = "Face matched"
	MsgCameraNotDetected = "Camera not detected"
	MsgRecognitionFailed = "Recognition failed"
	MsgAttendanceMarked  = "Attendance marked"
	MsgAttendanceFailed  = "Attendance failed"
	MsgStopped           = "Capture stopped"
)

// Options configure a Controller.
type Options struct {
	Mode             Mode
	CaptureInterval  time.Duration // periodic cadence in continuous mode
	RecognizeTimeout time.Duration
	RecordTimeout    time.Duration
	// RecordOnStop submits the aggregated present set when capture stops (continuous mode).
	RecordOnStop bool
	// RecordEachMatch records a student on first sighting (continuous mode).
	RecordEachMatch bool
	// PauseBrowsing pauses session polling while a session is joined.
	PauseBrowsing bool
	Logger        *slog.Logger
	Now           func() time.Time
}

// captureRun holds everything scoped to one joined session. A new run is
// created on every join; results carrying a different run are discarded.
type captureRun struct {
	id           string
	session      Session
	stopped      bool
	pending      *PendingConfirmation
	confirming   bool
	recorded     map[string]bool
	inflight     map[string]bool
	recordErrors map[string]string
	marks        sync.WaitGroup // recordings submitted for this run
}

func newCaptureRun(s Session) *captureRun {
	return &captureRun{
		id:           uuid.New().String(),
		session:      s,
		recorded:     make(map[string]bool),
		inflight:     make(map[string]bool),
		recordErrors: make(map[string]string),
	}
}

// Controller owns the camera loop, the current session and the present set
// for one kiosk. All state changes go through its mutex; network calls run
// outside of it.
type Controller struct {
	loop       *Loop
	recorder   Recorder
	aggregator *Aggregator
	scheduler  Scheduler
	policy     capturePolicy
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
	events     EventBroadcaster
	browser    *Browser

	mu          sync.Mutex
	phase       Phase
	run         *captureRun
	status      string
	box         []float64 // last face box in source pixels
	boxRelative []float64 // last face box relative to the frame
	lastErr     error
}

// NewController creates a controller in the Idle phase.
func NewController(source capture.Source, recognizer Recognizer, recorder Recorder, opts Options) *Controller {
	if opts.Mode == "" {
		opts.Mode = ModeManual
	}
	if opts.CaptureInterval <= 0 {
		opts.CaptureInterval = constants.DefaultCaptureInterval
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = constants.DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	loop := NewLoop(source, recognizer, opts.RecognizeTimeout, opts.Logger)
	loop.now = opts.Now

	return &Controller{
		loop:       loop,
		recorder:   recorder,
		aggregator: NewAggregator(),
		policy:     newPolicy(opts),
		opts:       opts,
		logger:     opts.Logger,
		now:        opts.Now,
		phase:      PhaseIdle,
	}
}

// Mode returns the capture mode.
func (c *Controller) Mode() Mode {
	return c.policy.mode()
}

// Events returns the broadcaster for controller and browser events.
func (c *Controller) Events() *EventBroadcaster {
	return &c.events
}

// Aggregator returns the presence aggregator.
func (c *Controller) Aggregator() *Aggregator {
	return c.aggregator
}

// Browser returns the attached session browser, if any.
func (c *Controller) Browser() *Browser {
	return c.browser
}

// AttachBrowser connects a session browser. The browser publishes its
// refreshes through the controller's event broadcaster.
func (c *Controller) AttachBrowser(b *Browser) {
	b.setEvents(&c.events)
	c.mu.Lock()
	c.browser = b
	if c.phase == PhaseIdle && b.Active() {
		c.phase = PhaseBrowsing
	}
	c.mu.Unlock()
}

// StartBrowsing starts the attached browser's polling and enters Browsing.
func (c *Controller) StartBrowsing(ctx context.Context) error {
	if c.browser == nil {
		return errors.New("no session browser attached")
	}
	if err := c.browser.Start(ctx); err != nil && !errors.Is(err, ErrSchedulerRunning) {
		return err
	}
	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.phase = PhaseBrowsing
		c.publishStateLocked()
	}
	c.mu.Unlock()
	return nil
}

// JoinByID joins a session from the browser's current list.
func (c *Controller) JoinByID(ctx context.Context, sessionID string) error {
	if c.browser == nil {
		return errors.New("no session browser attached")
	}
	s, ok := c.browser.Find(sessionID)
	if !ok {
		return fmt.Errorf("%w: session %s not found", ErrSessionNotJoinable, sessionID)
	}
	return c.Join(ctx, s)
}

// Join opens the camera view for a live session. Non-live sessions are
// rejected before any network call. Joining resets the present set and any
// pending confirmation; an already joined session is left first.
// In continuous mode capture starts immediately.
func (c *Controller) Join(ctx context.Context, s Session) error {
	now := c.now()
	if !s.Joinable(now) {
		return fmt.Errorf("%w: session %s is %s", ErrSessionNotJoinable, s.ID, joinStatus(s, now))
	}

	c.mu.Lock()
	c.scheduler.Stop()
	if c.run != nil {
		c.run.stopped = true
	}
	c.run = newCaptureRun(s)
	c.aggregator.Reset()
	c.phase = PhaseJoined
	c.lastErr = nil
	c.clearBoxLocked()
	c.setStatusLocked(MsgLookAtCamera)
	c.publishStateLocked()
	c.mu.Unlock()

	c.logger.Info("joined session", "session_id", s.ID, "subject", s.Subject, "mode", c.Mode())

	if c.opts.PauseBrowsing && c.browser != nil {
		c.browser.Pause()
	}

	if c.Mode() == ModeContinuous {
		return c.StartCapture(ctx)
	}
	return nil
}

func joinStatus(s Session, now time.Time) Status {
	if s.Status != "" && s.Status != StatusLive {
		return s.Status
	}
	return s.StatusAt(now)
}

// StartCapture moves Joined to Capturing. In continuous mode it starts the
// periodic capture schedule; the schedule outlives ctx's cancellation and
// runs until Stop. Stop only cancels scheduling: a cycle already calling the
// recognizer or the recorder runs to completion.
func (c *Controller) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := c.activeRunLocked()
	if run == nil {
		return ErrNotJoined
	}
	if c.phase != PhaseJoined {
		return nil
	}
	c.phase = PhaseCapturing

	if c.Mode() == ModeContinuous {
		err := c.scheduler.Start(context.WithoutCancel(ctx), c.opts.CaptureInterval, func(ctx context.Context) {
			if _, err := c.runCycle(context.WithoutCancel(ctx), run); err != nil && !errors.Is(err, ErrStaleResult) {
				c.logger.Debug("capture cycle failed", "session_id", run.session.ID, "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	c.publishStateLocked()
	return nil
}

// TriggerCapture runs one manual capture cycle. It is rejected while the
// periodic schedule is running and while a candidate awaits confirmation.
func (c *Controller) TriggerCapture(ctx context.Context) (RecognitionEvent, error) {
	c.mu.Lock()
	run := c.activeRunLocked()
	if run == nil {
		c.mu.Unlock()
		return RecognitionEvent{}, ErrNotJoined
	}
	if c.scheduler.Active() {
		c.mu.Unlock()
		return RecognitionEvent{}, ErrPeriodicActive
	}
	if run.pending != nil {
		c.mu.Unlock()
		return RecognitionEvent{}, ErrConfirmationPending
	}
	if c.phase == PhaseJoined {
		c.phase = PhaseCapturing
		c.publishStateLocked()
	}
	c.mu.Unlock()

	return c.runCycle(ctx, run)
}

// runCycle performs one capture and applies the result if run is still current.
func (c *Controller) runCycle(ctx context.Context, run *captureRun) (RecognitionEvent, error) {
	c.mu.Lock()
	if !c.isCurrentLocked(run) {
		c.mu.Unlock()
		return RecognitionEvent{}, ErrStaleResult
	}
	if !c.loop.Busy() {
		c.setStatusLocked(MsgRecognizing)
	}
	c.mu.Unlock()

	event, err := c.loop.Capture(ctx, run.session.ID)
	if errors.Is(err, ErrLoopBusy) {
		return event, err
	}

	c.mu.Lock()
	if !c.isCurrentLocked(run) {
		c.mu.Unlock()
		c.logger.Debug("dropping result for stopped capture", "session_id", run.session.ID)
		return event, ErrStaleResult
	}

	if err != nil {
		c.lastErr = err
		if errors.Is(err, ErrCaptureUnavailable) {
			c.setStatusLocked(MsgCameraNotDetected)
		} else {
			c.setStatusLocked(MsgRecognitionFailed)
		}
		c.mu.Unlock()
		return event, err
	}

	c.lastErr = nil
	c.publishLocked(EventRecognition, "", event)
	marks := c.policy.handle(c, run, event)
	c.mu.Unlock()

	for _, m := range marks {
		c.recordMatch(ctx, run, m)
	}
	return event, nil
}

// recordMatch records a student seen in continuous mode. Failures are
// surfaced as events and state; the student stays present. The result is
// applied even when the run was stopped meanwhile.
func (c *Controller) recordMatch(ctx context.Context, run *captureRun, mark Mark) {
	defer run.marks.Done()
	err := c.record(ctx, run.session.ID, mark)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != run {
		if err != nil {
			c.logger.Warn("attendance not recorded for previous session", "session_id", run.session.ID, "student_id", mark.StudentID, "error", err)
		}
		return
	}
	c.applyRecordResultLocked(run, mark, err)
}

// record submits one mark. The call is detached from ctx's cancellation and
// bounded only by the record timeout.
func (c *Controller) record(ctx context.Context, sessionID string, mark Mark) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RecordTimeout)
	defer cancel()
	return c.recorder.MarkAttendance(rctx, sessionID, mark)
}

func (c *Controller) applyRecordResultLocked(run *captureRun, mark Mark, err error) error {
	delete(run.inflight, mark.StudentID)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %w", ErrRecordingFailed, mark.StudentName, err)
		run.recordErrors[mark.StudentID] = err.Error()
		c.lastErr = wrapped
		if !run.stopped {
			c.setStatusLocked(MsgAttendanceFailed + ": " + err.Error())
		}
		c.publishLocked(EventRecordError, err.Error(), mark)
		c.logger.Warn("attendance not recorded", "session_id", run.session.ID, "student_id", mark.StudentID, "error", err)
		return wrapped
	}
	run.recorded[mark.StudentID] = true
	delete(run.recordErrors, mark.StudentID)
	if !run.stopped {
		c.setStatusLocked(MsgAttendanceMarked)
	}
	c.publishLocked(EventRecorded, mark.StudentName, mark)
	c.logger.Info("attendance recorded", "session_id", run.session.ID, "student_id", mark.StudentID)
	return nil
}

// Confirm records the pending candidate. The pending confirmation is
// consumed before the recorder is called, so repeated confirms result in at
// most one recording. The student is added to the present set regardless
// of the recording outcome.
func (c *Controller) Confirm(ctx context.Context) error {
	if c.Mode() != ModeManual {
		return ErrUnsupportedAction
	}

	c.mu.Lock()
	run := c.activeRunLocked()
	if run == nil {
		c.mu.Unlock()
		return ErrNotJoined
	}
	if run.pending == nil || run.confirming {
		c.mu.Unlock()
		return ErrNoPending
	}

	p := *run.pending
	run.pending = nil
	run.confirming = true
	run.inflight[p.StudentID] = true
	run.marks.Add(1)
	defer run.marks.Done()

	changed := c.aggregator.Apply(RecognitionEvent{
		ID:         p.EventID,
		SessionID:  run.session.ID,
		CapturedAt: p.CapturedAt,
		Faces: []FaceObservation{{
			Box:   p.Box,
			Match: &Match{StudentID: p.StudentID, StudentName: p.StudentName, Score: p.Confidence},
		}},
	})
	if len(changed) > 0 {
		c.publishLocked(EventPresent, "", changed)
	}
	c.mu.Unlock()

	mark := Mark{StudentID: p.StudentID, StudentName: p.StudentName, Confidence: p.Confidence}
	err := c.record(ctx, run.session.ID, mark)

	c.mu.Lock()
	defer c.mu.Unlock()
	run.confirming = false
	if c.run != run {
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRecordingFailed, mark.StudentName, err)
		}
		return ErrStaleResult
	}
	if !run.stopped && c.phase == PhaseManualConfirm && run.pending == nil {
		c.phase = PhaseCapturing
	}
	return c.applyRecordResultLocked(run, mark, err)
}

// Dismiss discards the pending candidate without recording.
func (c *Controller) Dismiss() error {
	if c.Mode() != ModeManual {
		return ErrUnsupportedAction
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	run := c.activeRunLocked()
	if run == nil {
		return ErrNotJoined
	}
	if run.pending == nil {
		return ErrNoPending
	}
	run.pending = nil
	c.phase = PhaseCapturing
	c.clearBoxLocked()
	c.setStatusLocked(MsgLookAtCamera)
	c.publishStateLocked()
	return nil
}

// StopSummary describes the session that was just stopped.
type StopSummary struct {
	Session  Session           `json:"session"`
	Present  []PresentEntry    `json:"present"`
	Recorded int               `json:"recorded"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Stop ends capture for the joined session. No capture cycle starts after
// Stop returns and recognition results arriving later are discarded.
// Recordings already submitted are waited for, so their failures show up in
// the summary. With RecordOnStop the present students not yet recorded are
// submitted; failures are returned wrapped in ErrRecordingFailed.
func (c *Controller) Stop(ctx context.Context) (StopSummary, error) {
	c.mu.Lock()
	run := c.activeRunLocked()
	if run == nil {
		c.mu.Unlock()
		return StopSummary{}, ErrNotJoined
	}

	c.scheduler.Stop()
	run.stopped = true
	run.pending = nil
	draining := make([]string, 0, len(run.inflight))
	for id := range run.inflight {
		draining = append(draining, id)
	}

	c.phase = PhaseIdle
	if c.browser != nil && c.browser.Active() {
		c.phase = PhaseBrowsing
	}
	c.clearBoxLocked()
	c.setStatusLocked(MsgStopped)
	c.mu.Unlock()

	if c.browser != nil {
		c.browser.Resume()
	}

	run.marks.Wait()

	c.mu.Lock()
	present := c.aggregator.Entries()
	var marks []Mark
	if c.Mode() == ModeContinuous && c.opts.RecordOnStop {
		for _, e := range present {
			if run.recorded[e.StudentID] {
				continue
			}
			marks = append(marks, Mark{StudentID: e.StudentID, StudentName: e.StudentName, Confidence: e.Confidence})
		}
	}
	c.mu.Unlock()

	summary := StopSummary{Session: run.session, Present: present}
	var errs []error
	submitted := make(map[string]bool, len(marks))
	for _, m := range marks {
		submitted[m.StudentID] = true
		err := c.record(ctx, run.session.ID, m)
		c.mu.Lock()
		if err != nil {
			run.recordErrors[m.StudentID] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", m.StudentID, err))
		} else {
			run.recorded[m.StudentID] = true
			delete(run.recordErrors, m.StudentID)
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	for _, id := range draining {
		if msg, ok := run.recordErrors[id]; ok && !submitted[id] {
			errs = append(errs, fmt.Errorf("%s: %s", id, msg))
		}
	}
	for id := range run.recorded {
		if _, ok := c.aggregator.Get(id); ok {
			summary.Recorded++
		}
	}
	if len(run.recordErrors) > 0 {
		summary.Failed = make(map[string]string, len(run.recordErrors))
		for id, msg := range run.recordErrors {
			summary.Failed[id] = msg
		}
	}
	c.publishLocked(EventStopped, run.session.ID, summary)
	c.publishStateLocked()
	c.mu.Unlock()

	c.logger.Info("capture stopped", "session_id", run.session.ID, "present", len(present), "recorded", summary.Recorded)

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrRecordingFailed, errors.Join(errs...))
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return summary, err
	}
	return summary, nil
}

// Close stops any capture and the attached browser.
func (c *Controller) Close(ctx context.Context) {
	if _, err := c.Stop(ctx); err != nil && !errors.Is(err, ErrNotJoined) {
		c.logger.Warn("stop on close failed", "error", err)
	}
	if c.browser != nil {
		c.browser.Stop()
	}
	c.mu.Lock()
	c.phase = PhaseIdle
	c.mu.Unlock()
}

// PresentStatus is a present entry together with its recording state.
type PresentStatus struct {
	PresentEntry
	Recorded    bool   `json:"recorded"`
	RecordError string `json:"record_error,omitempty"`
}

// State is an immutable view of the controller for rendering.
type State struct {
	Phase          Phase                `json:"phase"`
	Mode           Mode                 `json:"mode"`
	Session        *Session             `json:"session,omitempty"`
	Status         string               `json:"status"`
	Pending        *PendingConfirmation `json:"pending,omitempty"`
	Confirming     bool                 `json:"confirming"`
	Box            *facematch.Rect      `json:"box,omitempty"`
	BoxRelative    []float64            `json:"box_relative,omitempty"`
	Present        []PresentStatus      `json:"present"`
	LastError      string               `json:"last_error,omitempty"`
	LastErrorKind  string               `json:"last_error_kind,omitempty"`
	PeriodicActive bool                 `json:"periodic_active"`
	SkippedCycles  int64                `json:"skipped_cycles"`
}

// PresentSession returns the session the present set belongs to. It stays
// set after Stop until the next Join.
func (c *Controller) PresentSession() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return Session{}, false
	}
	return c.run.session, true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Phase:          c.phase,
		Mode:           c.Mode(),
		Status:         c.status,
		BoxRelative:    c.boxRelative,
		PeriodicActive: c.scheduler.Active(),
		SkippedCycles:  c.scheduler.Skipped(),
	}
	if rect, ok := facematch.BBoxToRect(c.box); ok {
		st.Box = &rect
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
		st.LastErrorKind = ErrorKind(c.lastErr)
	}

	entries := c.aggregator.Entries()
	st.Present = make([]PresentStatus, 0, len(entries))
	run := c.run
	for _, e := range entries {
		ps := PresentStatus{PresentEntry: e}
		if run != nil {
			ps.Recorded = run.recorded[e.StudentID]
			ps.RecordError = run.recordErrors[e.StudentID]
		}
		st.Present = append(st.Present, ps)
	}

	if run != nil && !run.stopped {
		s := run.session
		st.Session = &s
		st.Confirming = run.confirming
		if run.pending != nil {
			p := *run.pending
			st.Pending = &p
		}
	}
	return st
}

func (c *Controller) activeRunLocked() *captureRun {
	if c.run == nil || c.run.stopped {
		return nil
	}
	return c.run
}

func (c *Controller) isCurrentLocked(run *captureRun) bool {
	return c.run == run && !run.stopped
}

func (c *Controller) setStatusLocked(status string) {
	c.status = status
	c.publishLocked(EventStatus, status, nil)
}

func (c *Controller) setBoxLocked(box []float64, event RecognitionEvent) {
	if !facematch.ValidBBox(box) {
		c.clearBoxLocked()
		return
	}
	c.box = facematch.ScaleBBox(box, event.FrameScale)
	c.boxRelative = facematch.ConvertPixelBBoxToRelative(box, event.FrameWidth, event.FrameHeight)
}

func (c *Controller) clearBoxLocked() {
	c.box = nil
	c.boxRelative = nil
}

func (c *Controller) publishLocked(eventType, message string, data any) {
	c.events.SendEvent(Event{Type: eventType, Message: message, Data: data})
}

func (c *Controller) publishStateLocked() {
	c.publishLocked(EventState, string(c.phase), c.snapshotLocked())
}
