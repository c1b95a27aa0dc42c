package queue

import (
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zap.NewNop()), mock
}

func TestEnqueueInsertsPendingJob(t *testing.T) {
	store, mock := newMockStore(t)

	runAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("campaign_sends", sqlmock.AnyArg(), DefaultMaxAttempts, runAt, "1:2:3").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Enqueue("campaign_sends", map[string]int{"campaign_id": 1}, Options{
		RunAt:          runAt,
		IdempotencyKey: "1:2:3",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDuplicateKeyIsSilentNoOp(t *testing.T) {
	store, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING: zero rows affected, no error surfaced.
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("campaign_sends", sqlmock.AnyArg(), DefaultMaxAttempts, sqlmock.AnyArg(), "1:2:3").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Enqueue("campaign_sends", map[string]int{"campaign_id": 1}, Options{IdempotencyKey: "1:2:3"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueWithoutKeyPassesNull(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("campaign_sends", sqlmock.AnyArg(), DefaultMaxAttempts, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Enqueue("campaign_sends", map[string]int{"campaign_id": 1}, Options{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextReturnsNilWhenQueueEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE jobs SET status='running'").
		WithArgs("campaign_sends").
		WillReturnError(sql.ErrNoRows)

	job, err := store.ClaimNext("campaign_sends")
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextScansFullRow(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "queue", "payload", "status", "attempts", "max_attempts",
		"run_at", "idempotency_key", "started_at", "last_error", "created_at", "updated_at",
	}).AddRow(int64(42), "campaign_sends", []byte(`{"campaign_id":5}`), "running", 1, 3,
		now, "5:7:1", now, "smtp timeout", now, now)

	mock.ExpectQuery("UPDATE jobs SET status='running'").
		WithArgs("campaign_sends").
		WillReturnRows(rows)

	job, err := store.ClaimNext("campaign_sends")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(42), job.ID)
	assert.Equal(t, "campaign_sends", job.Queue)
	assert.JSONEq(t, `{"campaign_id":5}`, string(job.Payload))
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.IdempotencyKey)
	assert.Equal(t, "5:7:1", *job.IdempotencyKey)
	assert.Equal(t, "smtp timeout", job.LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailPushesBackoffInSeconds(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET").
		WithArgs(int64(9), int64(60), "smtp 451").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Fail(9, time.Minute, "smtp 451"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailPermanentlySkipsRetryBudget(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status='failed'").
		WithArgs(int64(9), "bad credentials").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.FailPermanently(9, "bad credentials"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeferTargetsOnlyRunningJobs(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE jobs SET status='pending'.+status='running'`).
		WithArgs(int64(9), int64(3600)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Defer(9, time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStaleCountsRecoveredJobs(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status='pending'").
		WithArgs(int64(120)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.SweepStale(2 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStaleZeroUsesDefaultWindow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET status='pending'").
		WithArgs(int64(DefaultStaleAfter / time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := store.SweepStale(0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
