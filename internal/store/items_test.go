// internal/store/items_test.go
package store

import (
	"context"
	"testing"
	"time"

	"handoff-coordinator/internal/realtime"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemCols = []string{
	"id", "session_id", "field_name", "original_value", "verified_value",
	"is_verified", "is_modified", "notes", "verified_at", "created_at", "updated_at",
}

func itemRow(id string, verifiedValue interface{}, verified, modified bool, verifiedAt interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(itemCols).
		AddRow(id, "sess-001", "phone", "555-0100", verifiedValue,
			verified, modified, "", verifiedAt, now, now)
}

func TestListItems_StableOrder(t *testing.T) {
	store, mock, _ := newTestStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(itemCols).
		AddRow("item-1", "sess-001", "phone", "555-0100", nil, false, false, "", nil, now, now).
		AddRow("item-2", "sess-001", "dob", "1960-04-02", nil, true, false, "", now, now, now)

	// bulk-created items share a created_at, so ordering must fall
	// back to id for a deterministic listing
	mock.ExpectQuery(`ORDER BY created_at ASC, id ASC`).
		WithArgs("sess-001").
		WillReturnRows(rows)

	items, err := store.ListItems(context.Background(), "sess-001")

	assert.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "phone", items[0].FieldName)
	assert.True(t, items[1].IsVerified)
	assert.NotNil(t, items[1].VerifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetItemVerified_MarksAndPublishes(t *testing.T) {
	store, mock, feed := newTestStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE verification_items`).
		WithArgs("item-1", true, sqlmock.AnyArg()).
		WillReturnRows(itemRow("item-1", nil, true, false, now))

	item, err := store.SetItemVerified(context.Background(), "item-1", true)

	assert.NoError(t, err)
	assert.True(t, item.IsVerified)
	assert.NotNil(t, item.VerifiedAt)

	// update event is keyed by the owning session, not the item
	require.Len(t, feed.events, 1)
	assert.Equal(t, realtime.TableItems, feed.events[0].Table)
	assert.Equal(t, "sess-001", feed.events[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetItemVerified_UnmarkClearsTimestamp(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectQuery(`UPDATE verification_items`).
		WithArgs("item-1", false, sqlmock.AnyArg()).
		WillReturnRows(itemRow("item-1", nil, false, false, nil))

	item, err := store.SetItemVerified(context.Background(), "item-1", false)

	assert.NoError(t, err)
	assert.False(t, item.IsVerified)
	assert.Nil(t, item.VerifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetItemValue_RoundTripClearsModified(t *testing.T) {
	store, mock, _ := newTestStore(t)

	// change away from the original
	mock.ExpectQuery(`UPDATE verification_items`).
		WithArgs("item-1", "555-0199", sqlmock.AnyArg()).
		WillReturnRows(itemRow("item-1", "555-0199", false, true, nil))
	// change back to the original
	mock.ExpectQuery(`UPDATE verification_items`).
		WithArgs("item-1", "555-0100", sqlmock.AnyArg()).
		WillReturnRows(itemRow("item-1", "555-0100", false, false, nil))

	changed, err := store.SetItemValue(context.Background(), "item-1", "555-0199")
	assert.NoError(t, err)
	assert.True(t, changed.IsModified)
	assert.True(t, changed.ComputeModified("555-0199"))

	reverted, err := store.SetItemValue(context.Background(), "item-1", "555-0100")
	assert.NoError(t, err)
	assert.False(t, reverted.IsModified)
	assert.False(t, reverted.ComputeModified("555-0100"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetItemNotes_NotFound(t *testing.T) {
	store, mock, feed := newTestStore(t)

	mock.ExpectQuery(`UPDATE verification_items`).
		WithArgs("missing", "call back after 5pm", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(itemCols))

	_, err := store.SetItemNotes(context.Background(), "missing", "call back after 5pm")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ITEM_NOT_FOUND")
	assert.Empty(t, feed.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
