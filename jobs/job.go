package jobs

import (
	"time"

	"github.com/BaSui01/assetflow/pipeline"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsRecoverable reports whether a job in this state was interrupted by a restart.
func (s Status) IsRecoverable() bool {
	return s == StatusQueued || s == StatusRunning
}

// Job is the persisted record of one background run.
type Job struct {
	ID     string `json:"id"`
	Status Status `json:"status"`

	// Stage is the last stage reported by the orchestrator.
	Stage    pipeline.Stage `json:"stage,omitempty"`
	Progress float64        `json:"progress"`

	Concept string                `json:"concept"`
	Request pipeline.RequestInput `json:"request"`

	Results []pipeline.EntrySummary `json:"results,omitempty"`
	Error   string                  `json:"error,omitempty"`

	ArchiveKey  string `json:"-"`
	ArchiveSize int64  `json:"archive_size,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Failures counts failed entries in the results.
func (j *Job) Failures() int {
	n := 0
	for _, r := range j.Results {
		if r.Artifact.Error != "" {
			n++
		}
	}
	return n
}

func (j *Job) clone() *Job {
	c := *j
	if j.Results != nil {
		c.Results = append([]pipeline.EntrySummary(nil), j.Results...)
	}
	return &c
}

// Event is one update published to subscribers of a job.
type Event struct {
	JobID    string            `json:"job_id"`
	Status   Status            `json:"status"`
	Progress pipeline.Progress `json:"progress"`
	Error    string            `json:"error,omitempty"`
	Time     time.Time         `json:"time"`
}
