package models

import (
	"time"

	"github.com/google/uuid"
)

// JobState constants
const (
	JobStateResolving    = "resolving"
	JobStateFetching     = "fetching"
	JobStateSelecting    = "selecting"
	JobStateExtracting   = "extracting"
	JobStateTranscribing = "transcribing"
	JobStateStreaming    = "streaming"
	JobStateCompleted    = "completed"
	JobStateFailed       = "failed"
)

// Job is the transient orchestration record for one API request. It is
// never persisted; it exists only for logging and retry accounting and is
// discarded when the response is sent or the request is abandoned.
type Job struct {
	ID        string        `json:"id"`
	Request   OutputRequest `json:"request"`
	State     string        `json:"state"`
	StartedAt time.Time     `json:"started_at"`
	Attempt   int           `json:"attempt"`
}

// NewJob creates a job record for an incoming request.
func NewJob(req OutputRequest) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Request:   req,
		State:     JobStateResolving,
		StartedAt: time.Now(),
	}
}
