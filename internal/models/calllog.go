// internal/models/calllog.go
package models

import "time"

// AgentType distinguishes the two operator roles on a call.
type AgentType string

const (
	AgentTypeBuffer   AgentType = "buffer"
	AgentTypeLicensed AgentType = "licensed"
)

// CallEventType is an open enumeration: unknown values are stored as-is
// so new agent actions can be logged without a schema change.
type CallEventType string

const (
	EventVerificationStarted     CallEventType = "verification_started"
	EventCallPickedUp            CallEventType = "call_picked_up"
	EventCallClaimed             CallEventType = "call_claimed"
	EventCallDropped             CallEventType = "call_dropped"
	EventCallDisconnected        CallEventType = "call_disconnected"
	EventTransferredToLA         CallEventType = "transferred_to_la"
	EventTransferredToLicensed   CallEventType = "transferred_to_licensed_agent"
	EventApplicationSubmitted    CallEventType = "application_submitted"
	EventApplicationNotSubmitted CallEventType = "application_not_submitted"
)

// EventDetails is the structured payload attached to a log entry. Each
// event type populates its own fields; Extra is the open map reserved
// for genuinely free-form annotations.
type EventDetails struct {
	Reason         string                 `json:"reason,omitempty"`
	DurationSecs   int                    `json:"durationSecs,omitempty"`
	TransferTarget string                 `json:"transferTarget,omitempty"`
	PolicyNumber   string                 `json:"policyNumber,omitempty"`
	Carrier        string                 `json:"carrier,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// CallUpdateLogEntry is one immutable record of a discrete agent
// action. Entries feed the daily per-agent statistics aggregation.
type CallUpdateLogEntry struct {
	ID              string        `json:"id" db:"id"`
	SubmissionID    string        `json:"submissionId" db:"submission_id"`
	AgentID         string        `json:"agentId" db:"agent_id"`
	AgentType       AgentType     `json:"agentType" db:"agent_type"`
	AgentName       string        `json:"agentName,omitempty" db:"agent_name"`
	EventType       CallEventType `json:"eventType" db:"event_type"`
	Details         *EventDetails `json:"details,omitempty" db:"event_details"`
	SessionID       string        `json:"sessionId,omitempty" db:"session_id"`
	NotificationID  string        `json:"notificationId,omitempty" db:"notification_id"`
	CallResultID    string        `json:"callResultId,omitempty" db:"call_result_id"`
	CustomerName    string        `json:"customerName,omitempty" db:"customer_name"`
	VendorName      string        `json:"vendorName,omitempty" db:"vendor_name"`
	IsRetentionCall bool          `json:"isRetentionCall" db:"is_retention_call"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
}
