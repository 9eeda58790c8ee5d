// internal/store/store.go

// Package store is the typed accessor for verification sessions,
// items, notifications and the call update log. It owns the SQL and
// publishes a change event after every committed write; business rules
// live with the callers.
package store

import (
	"context"
	"database/sql"

	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/realtime"
)

// ChangePublisher receives one event per committed write. Implemented
// by realtime.Feed; a nil publisher disables fan-out (tests).
type ChangePublisher interface {
	Publish(ctx context.Context, table, key string, op realtime.Op, record interface{}) error
}

type Store struct {
	db     *sql.DB
	feed   ChangePublisher
	logger logger.Logger
}

func New(db *sql.DB, feed ChangePublisher, log logger.Logger) *Store {
	return &Store{
		db:     db,
		feed:   feed,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// publish fans a committed write out to the change feed. Delivery
// failure degrades silently: subscribers fall back to last-known state
// and the write itself has already succeeded.
func (s *Store) publish(ctx context.Context, table, key string, op realtime.Op, record interface{}) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, table, key, op, record); err != nil {
		s.logger.Warn("change event not delivered", map[string]interface{}{
			"table": table,
			"key":   key,
			"op":    op,
			"error": err,
		})
	}
}
