package engine

import (
	"fmt"
	"strings"
)

// Mode selects how recognized students become attendance.
type Mode string

// Capture modes.
const (
	// ModeManual offers each match to the operator, who confirms before recording.
	ModeManual Mode = "manual"
	// ModeContinuous aggregates matches automatically on a fixed cadence.
	ModeContinuous Mode = "continuous"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeManual:
		return ModeManual, nil
	case ModeContinuous:
		return ModeContinuous, nil
	default:
		return "", fmt.Errorf("unknown capture mode %q (expected manual or continuous)", s)
	}
}

// capturePolicy decides what a resolved recognition event does to the
// controller state. handle runs with the controller lock held and returns
// marks that must be recorded once the lock is released.
type capturePolicy interface {
	mode() Mode
	handle(c *Controller, run *captureRun, event RecognitionEvent) []Mark
}

func newPolicy(opts Options) capturePolicy {
	if opts.Mode == ModeContinuous {
		return continuousPolicy{recordEachMatch: opts.RecordEachMatch}
	}
	return manualPolicy{}
}

type manualPolicy struct{}

func (manualPolicy) mode() Mode { return ModeManual }

// handle offers the primary face for confirmation. Other faces in the frame
// are ignored for this cycle.
func (manualPolicy) handle(c *Controller, run *captureRun, event RecognitionEvent) []Mark {
	primary, ok := event.Primary()
	if !ok {
		c.clearBoxLocked()
		c.setStatusLocked(MsgNoFace)
		return nil
	}

	c.setBoxLocked(primary.Box, event)

	if primary.Match == nil || primary.Match.StudentID == "" {
		c.setStatusLocked(MsgUnknownFace)
		return nil
	}

	// Keep the candidate the operator is already confirming.
	if run.confirming {
		return nil
	}

	run.pending = &PendingConfirmation{
		EventID:     event.ID,
		StudentID:   primary.Match.StudentID,
		StudentName: primary.Match.StudentName,
		Confidence:  primary.Match.Score,
		Box:         primary.Box,
		CapturedAt:  event.CapturedAt,
	}
	c.phase = PhaseManualConfirm
	c.setStatusLocked(MsgFaceMatched)
	c.publishLocked(EventPending, primary.Match.StudentName, *run.pending)
	return nil
}

type continuousPolicy struct {
	recordEachMatch bool
}

func (continuousPolicy) mode() Mode { return ModeContinuous }

// handle folds every positive match into the aggregator.
func (p continuousPolicy) handle(c *Controller, run *captureRun, event RecognitionEvent) []Mark {
	if event.NoFaceDetected() {
		c.clearBoxLocked()
		c.setStatusLocked(MsgNoFace)
		return nil
	}

	matched := event.Matched()
	if len(matched) == 0 {
		primary, _ := event.Primary()
		c.setBoxLocked(primary.Box, event)
		c.setStatusLocked(MsgUnknownFace)
		return nil
	}

	c.setBoxLocked(matched[0].Box, event)
	changed := c.aggregator.Apply(event)
	c.phase = PhaseRecording

	names := make([]string, 0, len(matched))
	for _, f := range matched {
		names = append(names, f.Match.StudentName)
	}
	c.setStatusLocked(MsgFaceMatched + ": " + strings.Join(names, ", "))
	if len(changed) > 0 {
		c.publishLocked(EventPresent, "", changed)
	}

	if !p.recordEachMatch {
		return nil
	}

	var marks []Mark
	for _, f := range matched {
		id := f.Match.StudentID
		if run.recorded[id] || run.inflight[id] {
			continue
		}
		run.inflight[id] = true
		run.marks.Add(1)
		marks = append(marks, Mark{StudentID: id, StudentName: f.Match.StudentName, Confidence: f.Match.Score})
	}
	return marks
}
