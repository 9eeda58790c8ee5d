// internal/realtime/view_test.go
package realtime

import (
	"context"
	"testing"
	"time"

	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore serves canned state and applies mutations in memory.
type fakeStore struct {
	session *models.VerificationSession
	items   map[string]*models.VerificationItem
	order   []string
}

func newFakeStore(sessionID string, fields ...string) *fakeStore {
	now := time.Now().UTC()
	fs := &fakeStore{
		session: &models.VerificationSession{
			ID:            sessionID,
			SubmissionID:  "sub-001",
			Status:        models.StatusInProgress,
			BufferAgentID: "buffer-001",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		items: map[string]*models.VerificationItem{},
	}
	for i, f := range fields {
		id := "item-" + string(rune('1'+i))
		fs.items[id] = &models.VerificationItem{
			ID:            id,
			SessionID:     sessionID,
			FieldName:     f,
			OriginalValue: "orig-" + f,
			CreatedAt:     now.Add(time.Duration(i) * time.Second),
			UpdatedAt:     now,
		}
		fs.order = append(fs.order, id)
	}
	return fs
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.VerificationSession, error) {
	s := *f.session
	return &s, nil
}

func (f *fakeStore) ListItems(ctx context.Context, sessionID string) ([]models.VerificationItem, error) {
	out := make([]models.VerificationItem, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.items[id])
	}
	return out, nil
}

func (f *fakeStore) SetItemVerified(ctx context.Context, itemID string, verified bool) (*models.VerificationItem, error) {
	item := f.items[itemID]
	item.IsVerified = verified
	cp := *item
	return &cp, nil
}

func (f *fakeStore) SetItemValue(ctx context.Context, itemID, value string) (*models.VerificationItem, error) {
	item := f.items[itemID]
	item.VerifiedValue = &value
	item.IsModified = item.ComputeModified(value)
	cp := *item
	return &cp, nil
}

func (f *fakeStore) SetItemNotes(ctx context.Context, itemID, notes string) (*models.VerificationItem, error) {
	item := f.items[itemID]
	item.Notes = notes
	cp := *item
	return &cp, nil
}

func (f *fakeStore) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus) (*models.VerificationSession, error) {
	f.session.Status = status
	s := *f.session
	return &s, nil
}

func newTestFeed(t *testing.T) (*Feed, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFeed(client, logger.NewTestLogger(t)), client
}

func activateView(t *testing.T, feed *Feed, st SessionStore, sessionID string) *SessionView {
	view := NewSessionView(st, feed, logger.NewTestLogger(t), sessionID)
	require.NoError(t, view.Activate(context.Background()))
	t.Cleanup(view.Close)
	return view
}

func TestSessionView_CloseTwiceIsSafe(t *testing.T) {
	feed, _ := newTestFeed(t)
	view := NewSessionView(newFakeStore("sess-001", "phone"), feed, logger.NewTestLogger(t), "sess-001")
	require.NoError(t, view.Activate(context.Background()))

	view.Close()
	assert.NotPanics(t, view.Close)

	// the frozen replica stays readable
	session, items := view.Snapshot()
	require.NotNil(t, session)
	assert.Len(t, items, 1)
}

func TestSessionView_LoadsInitialState(t *testing.T) {
	feed, _ := newTestFeed(t)
	view := activateView(t, feed, newFakeStore("sess-001", "phone", "dob"), "sess-001")

	session, items := view.Snapshot()
	require.NotNil(t, session)
	assert.Equal(t, "sess-001", session.ID)
	assert.Len(t, items, 2)
}

func TestSessionView_AppliesRemoteItemUpdate(t *testing.T) {
	feed, _ := newTestFeed(t)
	st := newFakeStore("sess-001", "phone", "dob")
	view := activateView(t, feed, st, "sess-001")

	// another agent's write arrives over the feed
	remote := *st.items["item-1"]
	remote.IsVerified = true
	require.NoError(t, feed.Publish(context.Background(), TableItems, "sess-001", OpUpdate, &remote))

	assert.Eventually(t, func() bool {
		_, items := view.Snapshot()
		return items[0].IsVerified
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 50, view.Progress().Percent)
}

func TestSessionView_AppliesRemoteSessionUpdate(t *testing.T) {
	feed, _ := newTestFeed(t)
	st := newFakeStore("sess-001", "phone")
	view := activateView(t, feed, st, "sess-001")

	updated := *st.session
	updated.Status = models.StatusReadyForTransfer
	require.NoError(t, feed.Publish(context.Background(), TableSessions, "sess-001", OpUpdate, &updated))

	assert.Eventually(t, func() bool {
		session, _ := view.Snapshot()
		return session.Status == models.StatusReadyForTransfer
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionView_InsertAppendsUnknownItem(t *testing.T) {
	feed, _ := newTestFeed(t)
	view := activateView(t, feed, newFakeStore("sess-001", "phone"), "sess-001")

	late := models.VerificationItem{
		ID:            "item-9",
		SessionID:     "sess-001",
		FieldName:     "beneficiary",
		OriginalValue: "unknown",
	}
	require.NoError(t, feed.Publish(context.Background(), TableItems, "sess-001", OpInsert, &late))

	assert.Eventually(t, func() bool {
		_, items := view.Snapshot()
		return len(items) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionView_OtherSessionEventsNeverArrive(t *testing.T) {
	feed, _ := newTestFeed(t)
	st := newFakeStore("sess-001", "phone")
	view := activateView(t, feed, st, "sess-001")

	// same table, different session scope: a different channel entirely
	other := models.VerificationItem{ID: "intruder", SessionID: "sess-002", FieldName: "phone"}
	require.NoError(t, feed.Publish(context.Background(), TableItems, "sess-002", OpUpdate, &other))

	time.Sleep(100 * time.Millisecond)
	_, items := view.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
}

func TestSessionView_WriteThroughUpdatesLocalState(t *testing.T) {
	feed, _ := newTestFeed(t)
	st := newFakeStore("sess-001", "phone", "dob")
	view := activateView(t, feed, st, "sess-001")

	_, err := view.VerifyItem(context.Background(), "item-1", true)
	require.NoError(t, err)
	_, err = view.SetItemValue(context.Background(), "item-2", "1961-04-02")
	require.NoError(t, err)

	_, items := view.Snapshot()
	assert.True(t, items[0].IsVerified)
	assert.True(t, items[1].IsModified)
	assert.Equal(t, 50, view.Progress().Percent)
}

func TestSessionView_DuplicateEventIsIdempotent(t *testing.T) {
	feed, _ := newTestFeed(t)
	st := newFakeStore("sess-001", "phone")
	view := activateView(t, feed, st, "sess-001")

	remote := *st.items["item-1"]
	remote.IsVerified = true
	for i := 0; i < 3; i++ {
		require.NoError(t, feed.Publish(context.Background(), TableItems, "sess-001", OpUpdate, &remote))
	}

	assert.Eventually(t, func() bool {
		_, items := view.Snapshot()
		return len(items) == 1 && items[0].IsVerified
	}, 2*time.Second, 10*time.Millisecond)
}
