// internal/models/notification.go
package models

import "time"

// NotificationType identifies the hand-off signal a notification carries.
// Immutable after creation.
type NotificationType string

const (
	TypeBufferConnected   NotificationType = "buffer_connected"
	TypeLAReady           NotificationType = "la_ready"
	TypeTransferInitiated NotificationType = "transfer_initiated"
)

// NotificationStatus is the delivery lifecycle state.
type NotificationStatus string

const (
	NotificationPending      NotificationStatus = "pending"
	NotificationSeen         NotificationStatus = "seen"
	NotificationAcknowledged NotificationStatus = "acknowledged"
	NotificationExpired      NotificationStatus = "expired"
)

// notificationRank orders the lifecycle for forward-only transitions.
// acknowledged and expired are both terminal.
var notificationRank = map[NotificationStatus]int{
	NotificationPending:      0,
	NotificationSeen:         1,
	NotificationAcknowledged: 2,
	NotificationExpired:      2,
}

// IsTerminal reports whether no further transition is allowed.
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationAcknowledged || s == NotificationExpired
}

// CanTransitionTo reports whether moving from s to target is valid.
// A backward write is a no-op for callers, never silently accepted.
func (s NotificationStatus) CanTransitionTo(target NotificationStatus) bool {
	from, ok := notificationRank[s]
	if !ok {
		return false
	}
	to, ok := notificationRank[target]
	if !ok {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return to > from
}

// RecipientID returns the agent this notification is surfaced to:
// la_ready tells the buffer agent the licensed agent is ready; the
// other two signal the licensed agent.
func (t NotificationType) RecipientID(bufferAgentID, licensedAgentID string) string {
	if t == TypeLAReady {
		return bufferAgentID
	}
	return licensedAgentID
}

// RetentionCallNotification is one hand-off signal between agents.
// Display names and customer/vendor labels are denormalized at creation
// so the row stays meaningful if the lead record later changes. Rows
// are never deleted; they form the audit trail.
type RetentionCallNotification struct {
	ID                string             `json:"id" db:"id"`
	SessionID         string             `json:"sessionId" db:"session_id"`
	SubmissionID      string             `json:"submissionId" db:"submission_id"`
	Type              NotificationType   `json:"type" db:"notification_type"`
	Status            NotificationStatus `json:"status" db:"status"`
	BufferAgentID     string             `json:"bufferAgentId" db:"buffer_agent_id"`
	LicensedAgentID   string             `json:"licensedAgentId,omitempty" db:"licensed_agent_id"`
	BufferAgentName   string             `json:"bufferAgentName,omitempty" db:"buffer_agent_name"`
	LicensedAgentName string             `json:"licensedAgentName,omitempty" db:"licensed_agent_name"`
	CustomerName      string             `json:"customerName,omitempty" db:"customer_name"`
	VendorName        string             `json:"vendorName,omitempty" db:"vendor_name"`
	CreatedAt         time.Time          `json:"createdAt" db:"created_at"`
	SeenAt            *time.Time         `json:"seenAt,omitempty" db:"seen_at"`
	AcknowledgedAt    *time.Time         `json:"acknowledgedAt,omitempty" db:"acknowledged_at"`
	ExpiredAt         *time.Time         `json:"expiredAt,omitempty" db:"expired_at"`
}
