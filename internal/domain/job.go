package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConfidenceThreshold is the minimum inference confidence required, combined
// with label equality, to declare a match. Shared between the worker and the
// documented matching policy; not tunable per request.
const ConfidenceThreshold = 0.75

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions may occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Prediction is the output of the inference capability for one video.
type Prediction struct {
	Action     string
	Confidence float64
}

// Result is the outcome of a completed recognition job.
type Result struct {
	PredictedAction string  `json:"predicted_action"`
	Confidence      float64 `json:"confidence"`
	IsMatch         bool    `json:"is_match"`
	ExpectedAction  string  `json:"expected_action"`
}

// Match applies the matching policy: the predicted action must equal the
// expected action and the confidence must reach ConfidenceThreshold.
func Match(p Prediction, expectedAction string) Result {
	return Result{
		PredictedAction: p.Action,
		Confidence:      p.Confidence,
		IsMatch:         p.Action == expectedAction && p.Confidence >= ConfidenceThreshold,
		ExpectedAction:  expectedAction,
	}
}

// Job is the durable record of one recognition request's lifecycle and
// outcome. Exactly one of Result/ErrorMessage is populated, and only in a
// terminal status.
type Job struct {
	ID             string
	OwnerID        int64
	ExpectedAction string
	Status         JobStatus
	Result         *Result
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewJob(ownerID int64, expectedAction string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		ExpectedAction: expectedAction,
		Status:         JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}
