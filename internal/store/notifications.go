// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/realtime"
)

const notificationColumns = `id, session_id, submission_id, notification_type, status,
	buffer_agent_id, licensed_agent_id, buffer_agent_name, licensed_agent_name,
	customer_name, vendor_name, created_at, seen_at, acknowledged_at, expired_at`

func scanNotification(row rowScanner) (*models.RetentionCallNotification, error) {
	var n models.RetentionCallNotification
	var seenAt, ackAt, expiredAt sql.NullTime

	err := row.Scan(
		&n.ID, &n.SessionID, &n.SubmissionID, &n.Type, &n.Status,
		&n.BufferAgentID, &n.LicensedAgentID, &n.BufferAgentName, &n.LicensedAgentName,
		&n.CustomerName, &n.VendorName, &n.CreatedAt, &seenAt, &ackAt, &expiredAt,
	)
	if err != nil {
		return nil, err
	}

	if seenAt.Valid {
		t := seenAt.Time
		n.SeenAt = &t
	}
	if ackAt.Valid {
		t := ackAt.Time
		n.AcknowledgedAt = &t
	}
	if expiredAt.Valid {
		t := expiredAt.Time
		n.ExpiredAt = &t
	}
	return &n, nil
}

// InsertNotification persists a new notification row and announces it
// on the change feed keyed by the recipient agent.
func (s *Store) InsertNotification(ctx context.Context, n *models.RetentionCallNotification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retention_call_notifications
			(id, session_id, submission_id, notification_type, status,
			 buffer_agent_id, licensed_agent_id, buffer_agent_name, licensed_agent_name,
			 customer_name, vendor_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.SessionID, n.SubmissionID, n.Type, n.Status,
		n.BufferAgentID, n.LicensedAgentID, n.BufferAgentName, n.LicensedAgentName,
		n.CustomerName, n.VendorName, n.CreatedAt,
	)
	if err != nil {
		return apperrors.NewStoreWriteFailedError(realtime.TableNotifications, err)
	}

	recipient := n.Type.RecipientID(n.BufferAgentID, n.LicensedAgentID)
	s.publish(ctx, realtime.TableNotifications, recipient, realtime.OpInsert, n)
	return nil
}

// GetNotification fetches one notification by id.
func (s *Store) GetNotification(ctx context.Context, id string) (*models.RetentionCallNotification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM retention_call_notifications
		WHERE id = $1`,
		id,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotificationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableNotifications, err)
	}
	return n, nil
}

// FindPendingLAReady returns the pending la_ready row for a
// (session, buffer agent) pair, or nil when none exists. This is the
// idempotency probe used before creating a new one.
func (s *Store) FindPendingLAReady(ctx context.Context, sessionID, bufferAgentID string) (*models.RetentionCallNotification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM retention_call_notifications
		WHERE session_id = $1 AND buffer_agent_id = $2
			AND notification_type = $3 AND status = $4
		ORDER BY created_at DESC
		LIMIT 1`,
		sessionID, bufferAgentID, models.TypeLAReady, models.NotificationPending,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableNotifications, err)
	}
	return n, nil
}

// NextPendingForRecipient is the "what should I show right now" query:
// newest still-pending la_ready row for the recipient, limit 1, or nil.
func (s *Store) NextPendingForRecipient(ctx context.Context, recipientID string) (*models.RetentionCallNotification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM retention_call_notifications
		WHERE buffer_agent_id = $1 AND notification_type = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		recipientID, models.TypeLAReady, models.NotificationPending,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableNotifications, err)
	}
	return n, nil
}

// transitionNotification performs a status-gated update: the WHERE
// clause only matches rows still in an allowed source status, so a
// replayed or backward transition matches nothing and changes nothing.
func (s *Store) transitionNotification(ctx context.Context, id string, to models.NotificationStatus, stampColumn string, at time.Time) (*models.RetentionCallNotification, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE retention_call_notifications
		SET status = $2, `+stampColumn+` = COALESCE(`+stampColumn+`, $3)
		WHERE id = $1 AND status IN ('pending', 'seen')
		RETURNING `+notificationColumns,
		id, to, at,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableNotifications, err)
	}

	recipient := n.Type.RecipientID(n.BufferAgentID, n.LicensedAgentID)
	s.publish(ctx, realtime.TableNotifications, recipient, realtime.OpUpdate, n)
	return n, nil
}

// MarkNotificationSeen moves pending → seen. Returns nil when the row
// is already past pending (best-effort, not required for correctness).
func (s *Store) MarkNotificationSeen(ctx context.Context, id string, at time.Time) (*models.RetentionCallNotification, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE retention_call_notifications
		SET status = $2, seen_at = COALESCE(seen_at, $3)
		WHERE id = $1 AND status = 'pending'
		RETURNING `+notificationColumns,
		id, models.NotificationSeen, at,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableNotifications, err)
	}

	recipient := n.Type.RecipientID(n.BufferAgentID, n.LicensedAgentID)
	s.publish(ctx, realtime.TableNotifications, recipient, realtime.OpUpdate, n)
	return n, nil
}

// AcknowledgeNotification moves pending|seen → acknowledged (terminal).
func (s *Store) AcknowledgeNotification(ctx context.Context, id string, at time.Time) (*models.RetentionCallNotification, error) {
	return s.transitionNotification(ctx, id, models.NotificationAcknowledged, "acknowledged_at", at)
}

// ExpireNotification moves pending|seen → expired (terminal).
func (s *Store) ExpireNotification(ctx context.Context, id string, at time.Time) (*models.RetentionCallNotification, error) {
	return s.transitionNotification(ctx, id, models.NotificationExpired, "expired_at", at)
}

// ListPendingOlderThan returns pending notifications created before the
// cutoff, oldest first, for the TTL sweep.
func (s *Store) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.RetentionCallNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM retention_call_notifications
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC`,
		models.NotificationPending, cutoff,
	)
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableNotifications, err)
	}
	defer rows.Close()

	var out []models.RetentionCallNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.NewStoreReadFailedError(realtime.TableNotifications, err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableNotifications, err)
	}
	return out, nil
}
