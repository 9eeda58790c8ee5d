// internal/models/session.go
package models

import "time"

// SessionStatus is the lifecycle state of a verification session.
type SessionStatus string

const (
	StatusNotStarted       SessionStatus = "not_started"
	StatusInProgress       SessionStatus = "in_progress"
	StatusReadyForTransfer SessionStatus = "ready_for_transfer"
	StatusCompleted        SessionStatus = "completed"
	StatusTransferred      SessionStatus = "transferred"
)

// statusRank orders statuses for the forward-only transition rule.
// completed and transferred share the final rank.
var statusRank = map[SessionStatus]int{
	StatusNotStarted:       0,
	StatusInProgress:       1,
	StatusReadyForTransfer: 2,
	StatusCompleted:        3,
	StatusTransferred:      3,
}

// IsValid reports whether s is a known session status.
func (s SessionStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to target is a forward
// move. Re-asserting the current status is allowed (timestamps stay
// set-once regardless); regression is not.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	if s == StatusCompleted && target == StatusTransferred {
		return true
	}
	if s == StatusTransferred && target == StatusCompleted {
		return false
	}
	return to >= from
}

// VerificationSession tracks field-by-field review of one lead while a
// buffer agent prepares the hand-off to a licensed agent. Sessions are
// never hard-deleted; they are retained for audit.
type VerificationSession struct {
	ID              string        `json:"id" db:"id"`
	SubmissionID    string        `json:"submissionId" db:"submission_id"`
	Status          SessionStatus `json:"status" db:"status"`
	BufferAgentID   string        `json:"bufferAgentId" db:"buffer_agent_id"`
	LicensedAgentID *string       `json:"licensedAgentId,omitempty" db:"licensed_agent_id"`
	StartedAt       *time.Time    `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty" db:"completed_at"`
	TransferredAt   *time.Time    `json:"transferredAt,omitempty" db:"transferred_at"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}
