// internal/notify/manager.go

// Package notify runs the notification lifecycle for the visible
// handoff alerts between buffer and licensed agents. Exactly one
// pending la_ready notification is visible per recipient at a time:
// a newer one supersedes the old, and a TTL sweep expires the ones
// nobody ever answered.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"handoff-coordinator/internal/common/config"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/common/metrics"
	"handoff-coordinator/internal/models"
)

// NotificationStore is the slice of the persistence layer the manager
// needs. Satisfied by *store.Store.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.RetentionCallNotification) error
	GetNotification(ctx context.Context, id string) (*models.RetentionCallNotification, error)
	FindPendingLAReady(ctx context.Context, sessionID, bufferAgentID string) (*models.RetentionCallNotification, error)
	NextPendingForRecipient(ctx context.Context, recipientID string) (*models.RetentionCallNotification, error)
	MarkNotificationSeen(ctx context.Context, id string, at time.Time) (*models.RetentionCallNotification, error)
	AcknowledgeNotification(ctx context.Context, id string, at time.Time) (*models.RetentionCallNotification, error)
	ExpireNotification(ctx context.Context, id string, at time.Time) (*models.RetentionCallNotification, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.RetentionCallNotification, error)
}

type Manager struct {
	store  NotificationStore
	redis  *redis.Client
	cfg    config.NotificationConfig
	logger logger.Logger
	now    func() time.Time
}

func NewManager(st NotificationStore, rdb *redis.Client, cfg config.NotificationConfig, log logger.Logger) *Manager {
	return &Manager{
		store:  st,
		redis:  rdb,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries everything a notification denormalizes, so the
// recipient's client can render it without extra lookups.
type CreateInput struct {
	SessionID         string
	SubmissionID      string
	Type              models.NotificationType
	BufferAgentID     string
	LicensedAgentID   string
	BufferAgentName   string
	LicensedAgentName string
	CustomerName      string
	VendorName        string
}

// CreateResult reports whether a row was actually created. Created is
// false when an equivalent pending notification already existed and
// was returned instead.
type CreateResult struct {
	Notification *models.RetentionCallNotification
	Created      bool
}

// Create raises a notification. For la_ready it is idempotent per
// (session, buffer agent): repeated readiness signals return the
// already-pending row. A genuinely new la_ready supersedes any older
// pending one for the same recipient so only one is ever visible.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.Type == models.TypeLAReady {
		existing, err := m.store.FindPendingLAReady(ctx, in.SessionID, in.BufferAgentID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &CreateResult{Notification: existing, Created: false}, nil
		}
	}

	recipient := in.Type.RecipientID(in.BufferAgentID, in.LicensedAgentID)

	var superseded *models.RetentionCallNotification
	if in.Type == models.TypeLAReady {
		prev, err := m.store.NextPendingForRecipient(ctx, recipient)
		if err != nil {
			return nil, err
		}
		superseded = prev
	}

	n := &models.RetentionCallNotification{
		ID:                uuid.New().String(),
		SessionID:         in.SessionID,
		SubmissionID:      in.SubmissionID,
		Type:              in.Type,
		Status:            models.NotificationPending,
		BufferAgentID:     in.BufferAgentID,
		LicensedAgentID:   in.LicensedAgentID,
		BufferAgentName:   in.BufferAgentName,
		LicensedAgentName: in.LicensedAgentName,
		CustomerName:      in.CustomerName,
		VendorName:        in.VendorName,
		CreatedAt:         m.now(),
	}
	if err := m.store.InsertNotification(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationTransitions.WithLabelValues(string(n.Type), string(models.NotificationPending)).Inc()

	if superseded != nil {
		if _, err := m.store.ExpireNotification(ctx, superseded.ID, m.now()); err != nil {
			m.logger.Warn("superseded notification not expired", map[string]interface{}{
				"notification_id": superseded.ID,
				"error":           err,
			})
		} else {
			metrics.NotificationTransitions.WithLabelValues(string(superseded.Type), string(models.NotificationExpired)).Inc()
		}
	}

	return &CreateResult{Notification: n, Created: true}, nil
}

// MarkSeen records that the recipient's client rendered the
// notification. Best-effort: a row already past pending is left alone.
func (m *Manager) MarkSeen(ctx context.Context, id string) error {
	n, err := m.store.MarkNotificationSeen(ctx, id, m.now())
	if err != nil {
		return err
	}
	if n != nil {
		metrics.NotificationTransitions.WithLabelValues(string(n.Type), string(models.NotificationSeen)).Inc()
	}
	return nil
}

// AckResult is what the recipient's client navigates with after
// accepting a handoff.
type AckResult struct {
	Notification *models.RetentionCallNotification
	DeepLink     string
}

// Acknowledge terminally accepts a notification and returns the deep
// link to the lead's call result screen. Acknowledging a notification
// that is already terminal returns nil without error, so a double
// click on the client is harmless.
func (m *Manager) Acknowledge(ctx context.Context, id string) (*AckResult, error) {
	n, err := m.store.AcknowledgeNotification(ctx, id, m.now())
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	metrics.NotificationTransitions.WithLabelValues(string(n.Type), string(models.NotificationAcknowledged)).Inc()

	return &AckResult{
		Notification: n,
		DeepLink:     fmt.Sprintf("%s?submissionId=%s", m.cfg.CallResultRoute, n.SubmissionID),
	}, nil
}

// Expire terminally dismisses a notification.
func (m *Manager) Expire(ctx context.Context, id string) error {
	n, err := m.store.ExpireNotification(ctx, id, m.now())
	if err != nil {
		return err
	}
	if n != nil {
		metrics.NotificationTransitions.WithLabelValues(string(n.Type), string(models.NotificationExpired)).Inc()
	}
	return nil
}

// ExpireStale sweeps pending notifications older than the configured
// TTL. Returns how many were expired.
func (m *Manager) ExpireStale(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-time.Duration(m.cfg.PendingTTLMinutes) * time.Minute)
	stale, err := m.store.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, n := range stale {
		if _, err := m.store.ExpireNotification(ctx, n.ID, m.now()); err != nil {
			m.logger.Warn("stale notification not expired", map[string]interface{}{
				"notification_id": n.ID,
				"error":           err,
			})
			continue
		}
		metrics.NotificationTransitions.WithLabelValues(string(n.Type), string(models.NotificationExpired)).Inc()
		expired++
	}

	if expired > 0 {
		m.logger.Info("expired stale notifications", map[string]interface{}{"count": expired})
	}
	return expired, nil
}

// RunSweeper expires stale notifications on an interval until the
// context is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.ExpireStale(ctx); err != nil {
				m.logger.Error("stale notification sweep failed", map[string]interface{}{"error": err})
			}
		}
	}
}

// NextPending returns the notification a recipient should currently
// see, or nil when their queue is clear.
func (m *Manager) NextPending(ctx context.Context, recipientID string) (*models.RetentionCallNotification, error) {
	return m.store.NextPendingForRecipient(ctx, recipientID)
}

// ShouldAlert decides whether a creation warrants an audible alert on
// the recipient's client. Only a genuinely new row alerts, and a
// Redis SETNX gate suppresses repeats inside the dedup window. When
// Redis is unreachable the alert goes through: a duplicate sound beats
// a missed handoff.
func (m *Manager) ShouldAlert(ctx context.Context, res *CreateResult) bool {
	if res == nil || !res.Created {
		return false
	}
	if m.redis == nil {
		return true
	}

	key := fmt.Sprintf("notify:alert:%s:%s", res.Notification.Type, res.Notification.SessionID)
	ttl := time.Duration(m.cfg.AlertDedupTTL) * time.Minute
	ok, err := m.redis.SetNX(ctx, key, res.Notification.ID, ttl).Result()
	if err != nil {
		m.logger.Warn("alert dedup check failed, alerting anyway", map[string]interface{}{"error": err})
		return true
	}
	return ok
}
