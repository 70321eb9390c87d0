package domain

import "time"

// JobStatus enumerates finalization job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transitions can leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// FinalizationJob tracks one asynchronous final-model generation task
// executed by the external finalization service.
type FinalizationJob struct {
	TaskID        string
	GalleryItemID string
	Status        JobStatus
	Progress      int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Apply folds a polled snapshot into the job and reports whether the job
// entered a terminal state by this application. A terminal job absorbs all
// further snapshots. A snapshot reporting lower progress than already
// recorded is ignored unless it carries a terminal status, so retried or
// reordered poll responses cannot move progress backward.
func (j *FinalizationJob) Apply(status JobStatus, progress int, errMsg string, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	if !status.Terminal() && progress < j.Progress {
		return false
	}
	if progress < j.Progress {
		progress = j.Progress
	}
	j.Status = status
	j.Progress = progress
	if errMsg != "" {
		j.ErrorMessage = errMsg
	}
	j.UpdatedAt = now
	return status.Terminal()
}
