package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a message queued for the worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	UserID    uint64 `gorm:"index;not null;default:0;uniqueIndex:uniq_job_user_idempo,priority:1" json:"-"`
	SessionID string `gorm:"size:64;index;not null" json:"session_id"`

	Prompt string `gorm:"type:text;not null" json:"-"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex:uniq_job_user_idempo,priority:2" json:"idempotency_key,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Reply  *string `gorm:"type:text" json:"reply,omitempty"`
	Intent string  `gorm:"type:varchar(64)" json:"intent,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "chat_jobs" }

func (j *Job) Finished() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
