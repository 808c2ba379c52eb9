package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Active reports whether the remote worker is still holding the job.
func (s JobStatus) Active() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// Job is a unit of asynchronous enhancement work owned by the remote
// service. This client only observes it; the single local mutation is the
// optimistic status recorded after a retry or cancel request.
type Job struct {
	ID           string     `json:"id"`
	ShootID      string     `json:"shoot_id"`
	Status       JobStatus  `json:"status"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ResultRef    string     `json:"result_ref,omitempty"`
}
