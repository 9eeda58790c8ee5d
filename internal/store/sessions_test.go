// internal/store/sessions_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/realtime"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var sessionCols = []string{
	"id", "submission_id", "status", "buffer_agent_id", "licensed_agent_id",
	"started_at", "completed_at", "transferred_at", "created_at", "updated_at",
}

func sessionRow(id, submissionID string, status models.SessionStatus, startedAt interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(sessionCols).
		AddRow(id, submissionID, string(status), "buffer-001", nil,
			startedAt, nil, nil, now, now)
}

// capturingFeed records every published change event.
type capturingFeed struct {
	events []realtime.ChangeEvent
	err    error
}

func (f *capturingFeed) Publish(ctx context.Context, table, key string, op realtime.Op, record interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, realtime.ChangeEvent{Op: op, Table: table, Key: key})
	return nil
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *capturingFeed) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	feed := &capturingFeed{}
	return New(db, feed, logger.NewTestLogger(t)), mock, feed
}

// ==========================
// CreateSession Tests
// ==========================

func TestCreateSession_SeedsItemsAndPublishes(t *testing.T) {
	store, mock, feed := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO verification_sessions`).
		WithArgs(sqlmock.AnyArg(), "sub-001", "not_started", "buffer-001",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO verification_items`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "phone", "555-0100",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO verification_items`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "dob", "1960-04-02",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	session, items, err := store.CreateSession(context.Background(), "sub-001", "buffer-001", []FieldSeed{
		{Name: "phone", Value: "555-0100"},
		{Name: "dob", Value: "1960-04-02"},
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, session.Status)
	assert.Len(t, items, 2)
	assert.Equal(t, session.ID, items[0].SessionID)
	assert.False(t, items[0].IsVerified)

	// one insert event for the session, one per item, all keyed by session
	require.Len(t, feed.events, 3)
	assert.Equal(t, realtime.TableSessions, feed.events[0].Table)
	for _, ev := range feed.events {
		assert.Equal(t, realtime.OpInsert, ev.Op)
		assert.Equal(t, session.ID, ev.Key)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_RollsBackOnItemInsertFailure(t *testing.T) {
	store, mock, feed := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO verification_sessions`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO verification_items`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := store.CreateSession(context.Background(), "sub-001", "buffer-001", []FieldSeed{
		{Name: "phone", Value: "555-0100"},
	})

	assert.Error(t, err)
	assert.Empty(t, feed.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Status Transition Tests
// ==========================

func TestUpdateSessionStatus_ForwardMove(t *testing.T) {
	store, mock, feed := newTestStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM verification_sessions`).
		WithArgs("sess-001").
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusNotStarted, nil))
	mock.ExpectQuery(`UPDATE verification_sessions`).
		WithArgs("sess-001", "in_progress", sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), "not_started").
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusInProgress, now))

	updated, err := store.UpdateSessionStatus(context.Background(), "sess-001", models.StatusInProgress)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.NotNil(t, updated.StartedAt)

	require.Len(t, feed.events, 1)
	assert.Equal(t, realtime.OpUpdate, feed.events[0].Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionStatus_RejectsBackwardMove(t *testing.T) {
	store, mock, feed := newTestStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM verification_sessions`).
		WithArgs("sess-001").
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusCompleted, time.Now().UTC()))

	_, err := store.UpdateSessionStatus(context.Background(), "sess-001", models.StatusInProgress)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATUS_TRANSITION")
	assert.Empty(t, feed.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionStatus_StartedAtIsSetOnce(t *testing.T) {
	store, mock, _ := newTestStore(t)
	firstStart := time.Now().UTC().Add(-10 * time.Minute)

	// re-asserting in_progress keeps the original started_at: the
	// UPDATE only proposes a stamp, COALESCE keeps the first one
	mock.ExpectQuery(`SELECT (.+) FROM verification_sessions`).
		WithArgs("sess-001").
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusInProgress, firstStart))
	mock.ExpectQuery(`UPDATE verification_sessions`).
		WithArgs("sess-001", "in_progress", sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), "in_progress").
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusInProgress, firstStart))

	updated, err := store.UpdateSessionStatus(context.Background(), "sess-001", models.StatusInProgress)

	assert.NoError(t, err)
	assert.Equal(t, firstStart, updated.StartedAt.UTC())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionStatus_CompletedToTransferred(t *testing.T) {
	store, mock, _ := newTestStore(t)
	now := time.Now().UTC()

	completed := sqlmock.NewRows(sessionCols).
		AddRow("sess-001", "sub-001", "completed", "buffer-001", "la-007",
			now, now, nil, now, now)
	transferred := sqlmock.NewRows(sessionCols).
		AddRow("sess-001", "sub-001", "transferred", "buffer-001", "la-007",
			now, now, now, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM verification_sessions`).
		WithArgs("sess-001").
		WillReturnRows(completed)
	mock.ExpectQuery(`UPDATE verification_sessions`).
		WillReturnRows(transferred)

	updated, err := store.UpdateSessionStatus(context.Background(), "sess-001", models.StatusTransferred)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusTransferred, updated.Status)
	assert.NotNil(t, updated.TransferredAt)
	assert.Equal(t, "la-007", *updated.LicensedAgentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionStatus_ConcurrentMoveLosesRace(t *testing.T) {
	store, mock, feed := newTestStore(t)
	now := time.Now().UTC()

	// this writer read ready_for_transfer, but another writer has
	// already moved the session to transferred: the status-guarded
	// UPDATE matches zero rows and the stale write is rejected
	mock.ExpectQuery(`SELECT (.+) FROM verification_sessions`).
		WithArgs("sess-001").
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusReadyForTransfer, now))
	mock.ExpectQuery(`UPDATE verification_sessions`).
		WithArgs("sess-001", "completed", nil, sqlmock.AnyArg(), nil,
			sqlmock.AnyArg(), "ready_for_transfer").
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := store.UpdateSessionStatus(context.Background(), "sess-001", models.StatusCompleted)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATUS_TRANSITION")
	assert.Empty(t, feed.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_NotFound(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM verification_sessions`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := store.GetSession(context.Background(), "missing")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_NOT_FOUND")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	feed := &capturingFeed{err: errors.New("redis down")}
	store := New(db, feed, logger.NewTestLogger(t))

	mock.ExpectQuery(`UPDATE verification_sessions`).
		WithArgs("sess-001", "la-007", sqlmock.AnyArg()).
		WillReturnRows(sessionRow("sess-001", "sub-001", models.StatusInProgress, time.Now().UTC()))

	updated, err := store.AssignLicensedAgent(context.Background(), "sess-001", "la-007")

	assert.NoError(t, err)
	assert.NotNil(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
