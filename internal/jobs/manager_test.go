package jobs

import (
	"testing"

	"media-subtitler/internal/domain"
)

// TestManagerLifecycle verifies normal progression to done state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("job-1", "talk.mp4"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}
	if m.Current().Status != domain.JobStatusDecoding {
		t.Fatalf("status after start = %s, want decoding", m.Current().Status)
	}

	for _, status := range []domain.JobStatus{
		domain.JobStatusResampling,
		domain.JobStatusTranscribing,
		domain.JobStatusFormatting,
		domain.JobStatusDone,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.JobStatusDone {
		t.Fatalf("current status = %s, want done", current.Status)
	}
	if current.InputName != "talk.mp4" {
		t.Fatalf("input name = %q, want talk.mp4", current.InputName)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1", "clip.wav"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition(domain.JobStatusDone); err == nil {
		t.Fatal("expected invalid transition error for decoding -> done")
	}
	if err := m.Transition(domain.JobStatusTranscribing); err == nil {
		t.Fatal("expected invalid transition error for skipped resampling stage")
	}
}

// TestManagerSingleActiveJob verifies a second start is rejected while a job
// runs and accepted after a terminal state.
func TestManagerSingleActiveJob(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1", "a.mp3"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("job-2", "b.mp3"); err != ErrJobAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}

	if err := m.Transition(domain.JobStatusFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.Start("job-2", "b.mp3"); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
	if m.Current().ID != "job-2" {
		t.Fatalf("current job = %q, want job-2", m.Current().ID)
	}
}

// TestManagerCancel verifies cancel behavior and repeated cancel handling.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1", "a.mp3"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusResampling); err != nil {
		t.Fatalf("transition: %v", err)
	}

	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if m.Current().Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", m.Current().Status)
	}

	if err := m.Cancel(); err != ErrNoRunningJob {
		t.Fatalf("second cancel error = %v, want %v", err, ErrNoRunningJob)
	}
}

// TestManagerFailReachableFromAnyState verifies failure is always a legal
// transition.
func TestManagerFailReachableFromAnyState(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1", "a.mp3"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, status := range []domain.JobStatus{
		domain.JobStatusResampling,
		domain.JobStatusTranscribing,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	if err := m.Transition(domain.JobStatusFailed); err != nil {
		t.Fatalf("fail from transcribing: %v", err)
	}
	if m.IsRunning() {
		t.Fatal("failed job should not be running")
	}
}
