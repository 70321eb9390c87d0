package domain

import (
	"testing"
	"time"
)

func TestApplyAdvancesProgress(t *testing.T) {
	job := &FinalizationJob{TaskID: "t1", Status: JobStatusPending}
	now := time.Now()

	if terminal := job.Apply(JobStatusInProgress, 40, "", now); terminal {
		t.Fatalf("non-terminal snapshot reported terminal")
	}
	if job.Status != JobStatusInProgress {
		t.Fatalf("status = %q, want %q", job.Status, JobStatusInProgress)
	}
	if job.Progress != 40 {
		t.Fatalf("progress = %d, want 40", job.Progress)
	}
	if !job.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at not stamped")
	}
}

func TestApplyIgnoresProgressRegression(t *testing.T) {
	job := &FinalizationJob{TaskID: "t1", Status: JobStatusInProgress, Progress: 60}

	if terminal := job.Apply(JobStatusInProgress, 30, "", time.Now()); terminal {
		t.Fatalf("regressed snapshot reported terminal")
	}
	if job.Progress != 60 {
		t.Fatalf("progress = %d, want 60 after regressed snapshot", job.Progress)
	}
}

func TestApplyTerminalOverridesRegression(t *testing.T) {
	job := &FinalizationJob{TaskID: "t1", Status: JobStatusInProgress, Progress: 90}

	terminal := job.Apply(JobStatusFailed, 10, "boom", time.Now())
	if !terminal {
		t.Fatalf("terminal snapshot not reported as transition")
	}
	if job.Status != JobStatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, JobStatusFailed)
	}
	if job.Progress != 90 {
		t.Fatalf("progress = %d, want 90 kept on terminal regression", job.Progress)
	}
	if job.ErrorMessage != "boom" {
		t.Fatalf("error_message = %q, want boom", job.ErrorMessage)
	}
}

func TestApplyTerminalAbsorbs(t *testing.T) {
	job := &FinalizationJob{TaskID: "t1", Status: JobStatusSucceeded, Progress: 100}

	if terminal := job.Apply(JobStatusFailed, 0, "late failure", time.Now()); terminal {
		t.Fatalf("second terminal snapshot reported as transition")
	}
	if job.Status != JobStatusSucceeded {
		t.Fatalf("status = %q, want %q after absorb", job.Status, JobStatusSucceeded)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("error_message = %q, want empty after absorb", job.ErrorMessage)
	}
}

func TestTerminal(t *testing.T) {
	cases := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusInProgress, false},
		{JobStatusSucceeded, true},
		{JobStatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Fatalf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
