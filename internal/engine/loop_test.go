package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopCapture_CaptureUnavailable(t *testing.T) {
	rec := &fakeRecognizer{}
	loop := NewLoop(brokenSource(), rec, time.Second, discardLogger())

	_, err := loop.Capture(context.Background(), "S1")
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if rec.Calls() != 0 {
		t.Errorf("expected recognizer not to be called, got %d calls", rec.Calls())
	}
	if loop.Busy() {
		t.Error("expected loop to be idle after failure")
	}
}

func TestLoopCapture_RecognitionFailed(t *testing.T) {
	rec := &fakeRecognizer{err: errNetwork}
	loop := NewLoop(frameSource(), rec, time.Second, discardLogger())

	_, err := loop.Capture(context.Background(), "S1")
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
	if !errors.Is(err, errNetwork) {
		t.Errorf("expected underlying cause to be preserved, got %v", err)
	}
}

func TestLoopCapture_TimeoutIsRecognitionFailure(t *testing.T) {
	rec := &fakeRecognizer{block: make(chan struct{})}
	loop := NewLoop(frameSource(), rec, 20*time.Millisecond, discardLogger())

	_, err := loop.Capture(context.Background(), "S1")
	if !errors.Is(err, ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", err)
	}
}

func TestLoopCapture_NoFaceDetected(t *testing.T) {
	rec := &fakeRecognizer{results: [][]FaceObservation{{}}}
	loop := NewLoop(frameSource(), rec, time.Second, discardLogger())

	event, err := loop.Capture(context.Background(), "S1")
	if err != nil {
		t.Fatalf("expected no error for empty result, got %v", err)
	}
	if !event.NoFaceDetected() {
		t.Error("expected NoFaceDetected")
	}
	if event.ID == "" {
		t.Error("expected event ID to be set")
	}
	if event.SessionID != "S1" {
		t.Errorf("expected session S1, got %s", event.SessionID)
	}
	if event.FrameWidth != 640 || event.FrameHeight != 480 {
		t.Errorf("expected frame dimensions 640x480, got %dx%d", event.FrameWidth, event.FrameHeight)
	}
}

func TestLoopCapture_SkipsWhileBusy(t *testing.T) {
	rec := &fakeRecognizer{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
		results: [][]FaceObservation{{match("42", "Asha", 0.91)}},
	}
	loop := NewLoop(frameSource(), rec, time.Second, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := loop.Capture(context.Background(), "S1")
		done <- err
	}()
	<-rec.started

	if _, err := loop.Capture(context.Background(), "S1"); !errors.Is(err, ErrLoopBusy) {
		t.Fatalf("expected ErrLoopBusy for overlapping capture, got %v", err)
	}

	close(rec.block)
	if err := <-done; err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	if rec.Calls() != 1 {
		t.Errorf("expected exactly one recognition call, got %d", rec.Calls())
	}
}

func TestRecognitionEventHelpers(t *testing.T) {
	event := RecognitionEvent{Faces: []FaceObservation{unknownFace(), match("7", "Bilal", 0.8)}}

	primary, ok := event.Primary()
	if !ok || primary.Match != nil {
		t.Errorf("expected unknown face as primary, got %+v", primary)
	}
	matched := event.Matched()
	if len(matched) != 1 || matched[0].Match.StudentID != "7" {
		t.Errorf("unexpected matched faces: %+v", matched)
	}
	if event.NoFaceDetected() {
		t.Error("expected faces to be detected")
	}
}
