// internal/store/items.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/realtime"
)

const itemColumns = `id, session_id, field_name, original_value, verified_value,
	is_verified, is_modified, notes, verified_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.VerificationItem, error) {
	var item models.VerificationItem
	var verifiedValue sql.NullString
	var verifiedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.SessionID, &item.FieldName, &item.OriginalValue, &verifiedValue,
		&item.IsVerified, &item.IsModified, &item.Notes, &verifiedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if verifiedValue.Valid {
		item.VerifiedValue = &verifiedValue.String
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		item.VerifiedAt = &t
	}
	return &item, nil
}

// ListItems fetches every item of a session, oldest first so the UI
// order is stable across both agents' screens. Bulk-created items
// share one created_at, so id breaks the tie deterministically.
func (s *Store) ListItems(ctx context.Context, sessionID string) ([]models.VerificationItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM verification_items
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableItems, err)
	}
	defer rows.Close()

	var items []models.VerificationItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, apperrors.NewStoreReadFailedError(realtime.TableItems, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreReadFailedError(realtime.TableItems, err)
	}
	return items, nil
}

// SetItemVerified flips the verified flag. Marking verified stamps
// verified_at once; unmarking clears it.
func (s *Store) SetItemVerified(ctx context.Context, itemID string, verified bool) (*models.VerificationItem, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_items
		SET is_verified = $2,
			verified_at = CASE WHEN $2 THEN COALESCE(verified_at, $3) ELSE NULL END,
			updated_at = $3
		WHERE id = $1
		RETURNING `+itemColumns,
		itemID, verified, now,
	)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewItemNotFoundError(itemID)
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableItems, err)
	}

	s.publish(ctx, realtime.TableItems, item.SessionID, realtime.OpUpdate, item)
	return item, nil
}

// SetItemValue records the reviewed value and derives is_modified by
// comparing against the original. Setting the value back to the
// original flips is_modified back to false.
func (s *Store) SetItemValue(ctx context.Context, itemID, value string) (*models.VerificationItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_items
		SET verified_value = $2,
			is_modified = (original_value IS DISTINCT FROM $2),
			updated_at = $3
		WHERE id = $1
		RETURNING `+itemColumns,
		itemID, value, time.Now().UTC(),
	)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewItemNotFoundError(itemID)
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableItems, err)
	}

	s.publish(ctx, realtime.TableItems, item.SessionID, realtime.OpUpdate, item)
	return item, nil
}

// SetItemNotes replaces the free-form notes on an item.
func (s *Store) SetItemNotes(ctx context.Context, itemID, notes string) (*models.VerificationItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_items
		SET notes = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+itemColumns,
		itemID, notes, time.Now().UTC(),
	)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewItemNotFoundError(itemID)
	}
	if err != nil {
		return nil, apperrors.NewStoreWriteFailedError(realtime.TableItems, err)
	}

	s.publish(ctx, realtime.TableItems, item.SessionID, realtime.OpUpdate, item)
	return item, nil
}
