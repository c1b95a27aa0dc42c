// internal/queue/queue.go
//
// Durable Postgres-backed job queue. Jobs are rows; claiming is a single
// conditional UPDATE with FOR UPDATE SKIP LOCKED so concurrent worker
// processes never take the same job. The queue carries no email semantics:
// payloads are opaque JSON.
package queue

import (
	"database/sql"
	"encoding/json"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"

	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts bounds retries before a job is permanently failed.
	DefaultMaxAttempts = 3

	// DefaultStaleAfter is how long a job may sit `running` before the sweep
	// assumes its worker died and returns it to `pending`.
	DefaultStaleAfter = 5 * time.Minute
)

// Queue is the interface consumed by the state machine and the worker.
type Queue interface {
	Enqueue(queue string, payload any, opts Options) error
	ClaimNext(queue string) (*model.Job, error)
	Complete(id int64) error
	Fail(id int64, backoff time.Duration, reason string) error
	// FailPermanently skips the retry budget; for errors that can never
	// succeed, e.g. bad credentials.
	FailPermanently(id int64, reason string) error
	Defer(id int64, delay time.Duration) error
}

// Options tune a single Enqueue call. Zero values mean: run now, no
// idempotency key, DefaultMaxAttempts.
type Options struct {
	RunAt          time.Time
	IdempotencyKey string
	MaxAttempts    int
}

// Store is the Postgres implementation.
type Store struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func NewStore(conn *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{DB: conn, Logger: logger.Named("queue")}
}

// Enqueue inserts a pending job. A colliding idempotency key is a silent
// no-op: the jobs table has a unique index on idempotency_key (NULLs
// distinct), so the same logical operation can never produce two rows.
func (s *Store) Enqueue(queue string, payload any, opts Options) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return appErrors.Wrap(err, "marshal job payload")
	}

	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var key *string
	if opts.IdempotencyKey != "" {
		key = &opts.IdempotencyKey
	}

	res, err := s.DB.Exec(`
        INSERT INTO jobs (queue, payload, status, attempts, max_attempts, run_at, idempotency_key, created_at, updated_at)
        VALUES ($1, $2, 'pending', 0, $3, $4, $5, NOW(), NOW())
        ON CONFLICT (idempotency_key) DO NOTHING
    `, queue, body, maxAttempts, runAt, key)
	if err != nil {
		return appErrors.Wrap(err, "enqueue job")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		s.Logger.Debug("enqueue skipped, idempotency key exists",
			zap.String("queue", queue),
			zap.String("idempotency_key", opts.IdempotencyKey))
	}
	return nil
}

// ClaimNext atomically takes ownership of the oldest due pending job on the
// given queue, or returns (nil, nil) when none is due. The inner SELECT and
// the UPDATE are one statement, so two workers can never claim the same row.
func (s *Store) ClaimNext(queue string) (*model.Job, error) {
	row := s.DB.QueryRow(`
        UPDATE jobs SET status='running', started_at=NOW(), updated_at=NOW()
        WHERE id = (
            SELECT id FROM jobs
            WHERE queue=$1 AND status='pending' AND run_at <= NOW()
            ORDER BY run_at, id
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, queue, payload, status, attempts, max_attempts, run_at, idempotency_key, started_at, last_error, created_at, updated_at
    `, queue)

	var j model.Job
	err := row.Scan(&j.ID, &j.Queue, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.IdempotencyKey, &j.StartedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, "claim job")
	}
	return &j, nil
}

// Complete marks a claimed job done.
func (s *Store) Complete(id int64) error {
	_, err := s.DB.Exec(`UPDATE jobs SET status='completed', updated_at=NOW() WHERE id=$1`, id)
	return appErrors.Wrap(err, "complete job")
}

// Fail records one failed attempt. Below the attempt cap the job goes back to
// pending with run_at pushed out by backoff; at the cap it is permanently
// failed and never silently dropped.
func (s *Store) Fail(id int64, backoff time.Duration, reason string) error {
	_, err := s.DB.Exec(`
        UPDATE jobs SET
            attempts = attempts + 1,
            status = CASE WHEN attempts + 1 < max_attempts THEN 'pending' ELSE 'failed' END,
            run_at = CASE WHEN attempts + 1 < max_attempts THEN NOW() + ($2 * INTERVAL '1 second') ELSE run_at END,
            last_error = $3,
            updated_at = NOW()
        WHERE id=$1
    `, id, int64(backoff.Seconds()), reason)
	return appErrors.Wrap(err, "fail job")
}

// FailPermanently marks a job failed regardless of remaining attempts.
func (s *Store) FailPermanently(id int64, reason string) error {
	_, err := s.DB.Exec(`
        UPDATE jobs SET status='failed', attempts = attempts + 1, last_error=$2, updated_at=NOW()
        WHERE id=$1
    `, id, reason)
	return appErrors.Wrap(err, "fail job permanently")
}

// Defer pushes a running job back to pending at now+delay without counting
// an attempt. Used when a campaign is paused: the job must come back later,
// unchanged, and re-enqueueing under the same idempotency key would be
// swallowed by the unique-key no-op.
func (s *Store) Defer(id int64, delay time.Duration) error {
	_, err := s.DB.Exec(`
        UPDATE jobs SET status='pending', run_at = NOW() + ($2 * INTERVAL '1 second'), started_at=NULL, updated_at=NOW()
        WHERE id=$1 AND status='running'
    `, id, int64(delay.Seconds()))
	return appErrors.Wrap(err, "defer job")
}

// SweepStale returns jobs stuck `running` longer than staleAfter to
// `pending`, counting the lost run as an attempt. Recovers automatically from
// worker crashes; meant to run periodically.
func (s *Store) SweepStale(staleAfter time.Duration) (int64, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	res, err := s.DB.Exec(`
        UPDATE jobs SET status='pending', attempts = attempts + 1, started_at=NULL, updated_at=NOW()
        WHERE status='running' AND started_at < NOW() - ($1 * INTERVAL '1 second')
    `, int64(staleAfter.Seconds()))
	if err != nil {
		return 0, appErrors.Wrap(err, "sweep stale jobs")
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.Logger.Warn("recovered stale running jobs", zap.Int64("count", n))
	}
	return n, nil
}

var _ Queue = (*Store)(nil)
