// internal/model/job.go
package model

import "time"

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one durable work item. Payload is opaque JSON; the queue carries no
// email semantics. At most one row may exist per non-empty IdempotencyKey.
type Job struct {
	ID             int64      `db:"id" json:"id"`
	Queue          string     `db:"queue" json:"queue"`
	Payload        []byte     `db:"payload" json:"payload"`
	Status         string     `db:"status" json:"status"`
	Attempts       int        `db:"attempts" json:"attempts"`
	MaxAttempts    int        `db:"max_attempts" json:"max_attempts"`
	RunAt          time.Time  `db:"run_at" json:"run_at"`
	IdempotencyKey *string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	LastError      string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
