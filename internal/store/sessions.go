// internal/store/sessions.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/realtime"
)

// FieldSeed is one field of interest on the lead; each seed becomes a
// verification item when the session is created.
type FieldSeed struct {
	Name  string
	Value string
}

const sessionColumns = `id, submission_id, status, buffer_agent_id, licensed_agent_id,
	started_at, completed_at, transferred_at, created_at, updated_at`

func scanSession(row *sql.Row) (*models.VerificationSession, error) {
	var s models.VerificationSession
	var licensedAgent sql.NullString
	var startedAt, completedAt, transferredAt sql.NullTime

	err := row.Scan(
		&s.ID, &s.SubmissionID, &s.Status, &s.BufferAgentID, &licensedAgent,
		&startedAt, &completedAt, &transferredAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if licensedAgent.Valid {
		s.LicensedAgentID = &licensedAgent.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		s.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	if transferredAt.Valid {
		t := transferredAt.Time
		s.TransferredAt = &t
	}
	return &s, nil
}

// CreateSession opens a verification session for a lead and
// bulk-creates one item per field of interest. The session and every
// item are announced on the change feed as inserts.
func (s *Store) CreateSession(ctx context.Context, submissionID, bufferAgentID string, fields []FieldSeed) (*models.VerificationSession, []models.VerificationItem, error) {
	now := time.Now().UTC()
	session := &models.VerificationSession{
		ID:            uuid.New().String(),
		SubmissionID:  submissionID,
		Status:        models.StatusNotStarted,
		BufferAgentID: bufferAgentID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.NewStoreWriteFailedError(realtime.TableSessions, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verification_sessions
			(id, submission_id, status, buffer_agent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.SubmissionID, session.Status, session.BufferAgentID,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return nil, nil, apperrors.NewStoreWriteFailedError(realtime.TableSessions, err)
	}

	items := make([]models.VerificationItem, 0, len(fields))
	for _, field := range fields {
		item := models.VerificationItem{
			ID:            uuid.New().String(),
			SessionID:     session.ID,
			FieldName:     field.Name,
			OriginalValue: field.Value,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO verification_items
				(id, session_id, field_name, original_value, is_verified, is_modified, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, false, false, '', $5, $6)`,
			item.ID, item.SessionID, item.FieldName, item.OriginalValue,
			item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return nil, nil, apperrors.NewStoreWriteFailedError(realtime.TableItems, err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperrors.NewStoreWriteFailedError(realtime.TableSessions, err)
	}

	s.publish(ctx, realtime.TableSessions, session.ID, realtime.OpInsert, session)
	for i := range items {
		s.publish(ctx, realtime.TableItems, session.ID, realtime.OpInsert, &items[i])
	}

	return session, items, nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.VerificationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM verification_sessions
		WHERE id = $1`,
		sessionID,
	)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableSessions, err)
	}
	return session, nil
}

// GetSessionBySubmission fetches the newest session for a lead.
func (s *Store) GetSessionBySubmission(ctx context.Context, submissionID string) (*models.VerificationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM verification_sessions
		WHERE submission_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		submissionID,
	)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewSessionNotFoundError(submissionID)
	}
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableSessions, err)
	}
	return session, nil
}

// UpdateSessionStatus applies a forward-only status move. Timestamps
// are set-once: re-asserting a status never overwrites an already-set
// started_at, completed_at or transferred_at.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus) (*models.VerificationSession, error) {
	current, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(status) {
		return nil, apperrors.NewInvalidStatusTransitionError(string(current.Status), string(status))
	}

	now := time.Now().UTC()
	var startStamp, completeStamp, transferStamp interface{}
	switch status {
	case models.StatusInProgress:
		startStamp = now
	case models.StatusCompleted:
		completeStamp = now
	case models.StatusTransferred:
		// transferred_at implies completed_at is set
		completeStamp = now
		transferStamp = now
	}

	// the UPDATE is guarded on the status we read, so a concurrent
	// writer who moved the session first makes this a zero-row update
	// instead of a silent overwrite
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_sessions
		SET status = $2,
			started_at = COALESCE(started_at, $3),
			completed_at = COALESCE(completed_at, $4),
			transferred_at = COALESCE(transferred_at, $5),
			updated_at = $6
		WHERE id = $1 AND status = $7
		RETURNING `+sessionColumns,
		sessionID, status, startStamp, completeStamp, transferStamp, now, current.Status,
	)

	updated, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidStatusTransitionError(string(current.Status), string(status))
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableSessions, err)
	}

	s.publish(ctx, realtime.TableSessions, updated.ID, realtime.OpUpdate, updated)
	return updated, nil
}

// AssignLicensedAgent sets the licensed agent taking over the call.
func (s *Store) AssignLicensedAgent(ctx context.Context, sessionID, agentID string) (*models.VerificationSession, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_sessions
		SET licensed_agent_id = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+sessionColumns,
		sessionID, agentID, time.Now().UTC(),
	)

	updated, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableSessions, err)
	}

	s.publish(ctx, realtime.TableSessions, updated.ID, realtime.OpUpdate, updated)
	return updated, nil
}
