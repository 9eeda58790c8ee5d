// internal/realtime/view.go
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/common/metrics"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/progress"
)

// SessionStore is the slice of the persistence layer a view needs.
// Satisfied by *store.Store.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.VerificationSession, error)
	ListItems(ctx context.Context, sessionID string) ([]models.VerificationItem, error)
	SetItemVerified(ctx context.Context, itemID string, verified bool) (*models.VerificationItem, error)
	SetItemValue(ctx context.Context, itemID, value string) (*models.VerificationItem, error)
	SetItemNotes(ctx context.Context, itemID, notes string) (*models.VerificationItem, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus) (*models.VerificationSession, error)
}

// SessionView is one agent's live view of a verification session: a
// local replica of the session row and its items, kept current by the
// change feed. Both agents on a call hold their own view of the same
// session and converge through the feed.
//
// Writes go through the store first; the local replica is only updated
// after the write succeeds, so a failed write never shows phantom
// state.
type SessionView struct {
	sessionID string
	store     SessionStore
	feed      *Feed
	logger    logger.Logger

	mu      sync.RWMutex
	session *models.VerificationSession
	items   []models.VerificationItem

	sessionSub *Subscription
	itemSub    *Subscription
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

func NewSessionView(st SessionStore, feed *Feed, log logger.Logger, sessionID string) *SessionView {
	return &SessionView{
		sessionID: sessionID,
		store:     st,
		feed:      feed,
		logger: log.WithFields(map[string]interface{}{
			"component":  "session-view",
			"session_id": sessionID,
		}),
		done: make(chan struct{}),
	}
}

// Activate subscribes to the session's change channels, loads the full
// current state, then starts applying feed events. Subscribing before
// the load means a write landing during the load is still delivered;
// replace-by-id reconciliation makes the overlap harmless.
func (v *SessionView) Activate(ctx context.Context) error {
	var err error
	v.sessionSub, err = v.feed.Subscribe(ctx, TableSessions, v.sessionID)
	if err != nil {
		return err
	}
	v.itemSub, err = v.feed.Subscribe(ctx, TableItems, v.sessionID)
	if err != nil {
		v.sessionSub.Close()
		return err
	}

	session, err := v.store.GetSession(ctx, v.sessionID)
	if err != nil {
		v.sessionSub.Close()
		v.itemSub.Close()
		return err
	}
	items, err := v.store.ListItems(ctx, v.sessionID)
	if err != nil {
		v.sessionSub.Close()
		v.itemSub.Close()
		return err
	}

	v.mu.Lock()
	v.session = session
	v.items = items
	v.mu.Unlock()

	v.wg.Add(1)
	go v.applyLoop()
	return nil
}

func (v *SessionView) applyLoop() {
	defer v.wg.Done()

	sessionEvents := v.sessionSub.Events()
	itemEvents := v.itemSub.Events()

	for sessionEvents != nil || itemEvents != nil {
		select {
		case <-v.done:
			return
		case ev, ok := <-sessionEvents:
			if !ok {
				sessionEvents = nil
				continue
			}
			v.applySessionEvent(ev)
		case ev, ok := <-itemEvents:
			if !ok {
				itemEvents = nil
				continue
			}
			v.applyItemEvent(ev)
		}
	}
	v.logger.Info("change feed closed, view frozen at last-known state", nil)
}

func (v *SessionView) applySessionEvent(ev ChangeEvent) {
	var session models.VerificationSession
	if err := json.Unmarshal(ev.Record, &session); err != nil {
		v.logger.Warn("dropping undecodable session event", map[string]interface{}{"error": err})
		return
	}

	v.mu.Lock()
	switch ev.Op {
	case OpDelete:
		v.session = nil
	default:
		v.session = &session
	}
	v.mu.Unlock()

	metrics.ChangeEventsApplied.WithLabelValues(ev.Table, string(ev.Op)).Inc()
}

func (v *SessionView) applyItemEvent(ev ChangeEvent) {
	var item models.VerificationItem
	if err := json.Unmarshal(ev.Record, &item); err != nil {
		v.logger.Warn("dropping undecodable item event", map[string]interface{}{"error": err})
		return
	}

	v.mu.Lock()
	v.reconcileItem(ev.Op, item)
	v.mu.Unlock()

	metrics.ChangeEventsApplied.WithLabelValues(ev.Table, string(ev.Op)).Inc()
}

// reconcileItem replaces by id: an update or insert for a known id
// swaps the whole record, an unknown id appends, a delete removes.
// Caller holds the lock.
func (v *SessionView) reconcileItem(op Op, item models.VerificationItem) {
	for i := range v.items {
		if v.items[i].ID == item.ID {
			if op == OpDelete {
				v.items = append(v.items[:i], v.items[i+1:]...)
			} else {
				v.items[i] = item
			}
			return
		}
	}
	if op != OpDelete {
		v.items = append(v.items, item)
	}
}

// Snapshot returns a copy of the current session and items.
func (v *SessionView) Snapshot() (*models.VerificationSession, []models.VerificationItem) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var session *models.VerificationSession
	if v.session != nil {
		s := *v.session
		session = &s
	}
	items := make([]models.VerificationItem, len(v.items))
	copy(items, v.items)
	return session, items
}

// Progress computes the verification summary from the current items.
func (v *SessionView) Progress() progress.Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return progress.Compute(v.items)
}

// VerifyItem marks or unmarks an item verified, write-through.
func (v *SessionView) VerifyItem(ctx context.Context, itemID string, verified bool) (*models.VerificationItem, error) {
	item, err := v.store.SetItemVerified(ctx, itemID, verified)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.reconcileItem(OpUpdate, *item)
	v.mu.Unlock()
	return item, nil
}

// SetItemValue records a reviewed value, write-through.
func (v *SessionView) SetItemValue(ctx context.Context, itemID, value string) (*models.VerificationItem, error) {
	item, err := v.store.SetItemValue(ctx, itemID, value)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.reconcileItem(OpUpdate, *item)
	v.mu.Unlock()
	return item, nil
}

// SetItemNotes replaces an item's notes, write-through.
func (v *SessionView) SetItemNotes(ctx context.Context, itemID, notes string) (*models.VerificationItem, error) {
	item, err := v.store.SetItemNotes(ctx, itemID, notes)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.reconcileItem(OpUpdate, *item)
	v.mu.Unlock()
	return item, nil
}

// SetStatus moves the session status, write-through. Backward moves
// are rejected by the store and leave the view untouched.
func (v *SessionView) SetStatus(ctx context.Context, status models.SessionStatus) (*models.VerificationSession, error) {
	session, err := v.store.UpdateSessionStatus(ctx, v.sessionID, status)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.session = session
	v.mu.Unlock()
	return session, nil
}

// Close stops the apply loop and releases both subscriptions. Safe to
// call more than once.
func (v *SessionView) Close() {
	v.closeOnce.Do(func() {
		close(v.done)
		v.sessionSub.Close()
		v.itemSub.Close()
		v.wg.Wait()
	})
}
