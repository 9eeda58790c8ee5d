// internal/store/calllog.go
package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/models"
)

const callLogTable = "call_update_log"

const callLogColumns = `id, submission_id, agent_id, agent_type, agent_name, event_type,
	event_details, session_id, notification_id, call_result_id,
	customer_name, vendor_name, is_retention_call, created_at`

func scanLogEntry(row rowScanner) (*models.CallUpdateLogEntry, error) {
	var e models.CallUpdateLogEntry
	var details []byte

	err := row.Scan(
		&e.ID, &e.SubmissionID, &e.AgentID, &e.AgentType, &e.AgentName, &e.EventType,
		&details, &e.SessionID, &e.NotificationID, &e.CallResultID,
		&e.CustomerName, &e.VendorName, &e.IsRetentionCall, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(details) > 0 {
		var d models.EventDetails
		if err := json.Unmarshal(details, &d); err == nil {
			e.Details = &d
		}
	}
	return &e, nil
}

// InsertLogEntry appends one immutable row to the call event log.
func (s *Store) InsertLogEntry(ctx context.Context, e *models.CallUpdateLogEntry) error {
	var details interface{}
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return apperrors.NewLogWriteFailedError(err)
		}
		details = raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_update_log
			(id, submission_id, agent_id, agent_type, agent_name, event_type,
			 event_details, session_id, notification_id, call_result_id,
			 customer_name, vendor_name, is_retention_call, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.SubmissionID, e.AgentID, e.AgentType, e.AgentName, e.EventType,
		details, e.SessionID, e.NotificationID, e.CallResultID,
		e.CustomerName, e.VendorName, e.IsRetentionCall, e.CreatedAt,
	)
	if err != nil {
		return apperrors.NewLogWriteFailedError(err)
	}
	return nil
}

// MarkRetention flags an already-written entry as a retention call.
// The flag is discovered after the insert, so this is a separate
// best-effort update rather than part of the append itself.
func (s *Store) MarkRetention(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE call_update_log SET is_retention_call = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return apperrors.NewStoreWriteFailedError(callLogTable, err)
	}
	return nil
}

// LogFilter narrows ListLog. Zero-value fields are ignored.
type LogFilter struct {
	SubmissionID string
	AgentID      string
	EventType    models.CallEventType
	From         time.Time
	To           time.Time
}

// ListLog returns log entries matching the filter, newest first.
func (s *Store) ListLog(ctx context.Context, f LogFilter) ([]models.CallUpdateLogEntry, error) {
	query := `SELECT ` + callLogColumns + ` FROM call_update_log WHERE 1=1`
	args := []interface{}{}

	appendCond := func(cond string, v interface{}) {
		args = append(args, v)
		query += " AND " + cond + argPlaceholder(len(args))
	}

	if f.SubmissionID != "" {
		appendCond("submission_id = ", f.SubmissionID)
	}
	if f.AgentID != "" {
		appendCond("agent_id = ", f.AgentID)
	}
	if f.EventType != "" {
		appendCond("event_type = ", string(f.EventType))
	}
	if !f.From.IsZero() {
		appendCond("created_at >= ", f.From)
	}
	if !f.To.IsZero() {
		appendCond("created_at < ", f.To)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(callLogTable, err)
	}
	defer rows.Close()

	var out []models.CallUpdateLogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, apperrors.NewStoreReadFailedError(callLogTable, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreReadFailedError(callLogTable, err)
	}
	return out, nil
}

// CountBySubmission returns per-event-type counts for one submission.
func (s *Store) CountBySubmission(ctx context.Context, submissionID string) (map[models.CallEventType]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*)
		FROM call_update_log
		WHERE submission_id = $1
		GROUP BY event_type`,
		submissionID,
	)
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(callLogTable, err)
	}
	defer rows.Close()

	out := make(map[models.CallEventType]int)
	for rows.Next() {
		var et models.CallEventType
		var n int
		if err := rows.Scan(&et, &n); err != nil {
			return nil, apperrors.NewStoreReadFailedError(callLogTable, err)
		}
		out[et] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreReadFailedError(callLogTable, err)
	}
	return out, nil
}

func argPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
