// internal/realtime/feed.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/common/metrics"
)

// Table names used as change-feed scopes.
const (
	TableSessions      = "verification_sessions"
	TableItems         = "verification_items"
	TableNotifications = "retention_call_notifications"
)

// Op is the kind of row change an event describes.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// ChangeEvent is one row change delivered over the feed. Key is the
// scope the subscription was filtered by (session id for session and
// item tables, recipient agent id for notifications), so events for a
// different scope can never reach a subscriber — the filter is the
// channel itself, not client-side checking.
type ChangeEvent struct {
	Op     Op              `json:"op"`
	Table  string          `json:"table"`
	Key    string          `json:"key"`
	Record json.RawMessage `json:"record"`
}

// Feed is the managed change-feed over Redis pub/sub. Delivery is
// causal per channel: events arrive in the order they were published
// for one (table, key) scope. No ordering is guaranteed across scopes.
type Feed struct {
	client *redis.Client
	logger logger.Logger
}

func NewFeed(client *redis.Client, log logger.Logger) *Feed {
	return &Feed{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "change-feed"}),
	}
}

func channelFor(table, key string) string {
	return fmt.Sprintf("changes:%s:%s", table, key)
}

// Publish emits one change event for a committed write.
func (f *Feed) Publish(ctx context.Context, table, key string, op Op, record interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.NewChangeFeedPublishError(channelFor(table, key), err)
	}

	event := ChangeEvent{Op: op, Table: table, Key: key, Record: raw}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.NewChangeFeedPublishError(channelFor(table, key), err)
	}

	if err := f.client.Publish(ctx, channelFor(table, key), payload).Err(); err != nil {
		f.logger.Error("change event publish failed", map[string]interface{}{
			"table": table,
			"key":   key,
			"op":    op,
			"error": err,
		})
		return errors.NewChangeFeedPublishError(channelFor(table, key), err)
	}

	metrics.ChangeEventsPublished.WithLabelValues(table, string(op)).Inc()
	return nil
}

// Subscription is one open change-feed channel. Events() closes when
// the subscription is closed or the underlying connection drops;
// consumers degrade to last-known state, reconnecting is the caller's
// concern.
type Subscription struct {
	table     string
	key       string
	pubsub    *redis.PubSub
	events    chan ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe opens a change subscription for one (table, key) scope.
// It waits for the server to confirm the subscription, so events
// published after Subscribe returns are guaranteed to be delivered.
func (f *Feed) Subscribe(ctx context.Context, table, key string) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelFor(table, key))

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.NewChangeFeedDisconnectedError(channelFor(table, key), err)
	}

	sub := &Subscription{
		table:  table,
		key:    key,
		pubsub: pubsub,
		events: make(chan ChangeEvent, 64),
		done:   make(chan struct{}),
	}

	go sub.run(f.logger)
	return sub, nil
}

func (s *Subscription) run(log logger.Logger) {
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		var event ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn("dropping malformed change event", map[string]interface{}{
				"table": s.table,
				"key":   s.key,
				"error": err,
			})
			continue
		}
		// the consumer may have stopped reading; never strand this
		// goroutine on a full buffer
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

// Events returns the stream of change events for this subscription.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.pubsub.Close()
}
