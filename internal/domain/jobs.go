package domain

import "time"

// JobState enumerates analysis job milestones.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobStatus is the terminal record a caller polls for an analysis job.
// Error carries a human-readable message only, never a stack trace.
type JobStatus struct {
	ID        string
	State     JobState
	Progress  string
	Result    *TrendResult
	Report    *BulkReport
	Error     string
	UpdatedAt time.Time
}

// TopicOutcome is the per-topic verdict inside a bulk analysis run.
type TopicOutcome struct {
	TopicID   string
	Succeeded bool
	Error     string
}

// BulkReport summarizes a bulk analysis over one owner's topics.
// A failed topic never fails the report wholesale.
type BulkReport struct {
	OwnerID   string
	Succeeded int
	Failed    int
	Outcomes  []TopicOutcome
}
