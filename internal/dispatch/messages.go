// internal/dispatch/messages.go
package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// EventType enumerates the outbound events worth telling the vendor
// channel about.
type EventType string

const (
	EventCallbackRequest             EventType = "callback_request"
	EventCallDropped                 EventType = "call_dropped"
	EventCallDisconnected            EventType = "call_disconnected"
	EventVerificationStarted         EventType = "verification_started"
	EventVerificationReconnected     EventType = "verification_reconnected"
	EventBufferConnected             EventType = "buffer_connected"
	EventApplicationOutcome          EventType = "application_outcome"
	EventBankingFixOutcome           EventType = "banking_fix_outcome"
	EventCarrierRequirementFulfilled EventType = "carrier_requirement_fulfilled"
)

// Event is one outbound notification to a vendor channel.
type Event struct {
	Type         EventType `json:"type"`
	SubmissionID string    `json:"submissionId"`
	VendorName   string    `json:"vendorName"`
	CustomerName string    `json:"customerName,omitempty"`
	AgentName    string    `json:"agentName,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	CallbackTime string    `json:"callbackTime,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Outcome      *bool     `json:"outcome,omitempty"`
	Carrier      string    `json:"carrier,omitempty"`
	Requirement  string    `json:"requirement,omitempty"`
}

const eventSchema = `{
	"type": "object",
	"required": ["type", "submissionId", "vendorName"],
	"properties": {
		"type": {
			"type": "string",
			"enum": [
				"callback_request",
				"call_dropped",
				"call_disconnected",
				"verification_started",
				"verification_reconnected",
				"buffer_connected",
				"application_outcome",
				"banking_fix_outcome",
				"carrier_requirement_fulfilled"
			]
		},
		"submissionId": {"type": "string", "minLength": 1},
		"vendorName": {"type": "string", "minLength": 1},
		"customerName": {"type": "string"},
		"agentName": {"type": "string"},
		"phoneNumber": {"type": "string"},
		"callbackTime": {"type": "string"},
		"reason": {"type": "string"},
		"outcome": {"type": "boolean"},
		"carrier": {"type": "string"},
		"requirement": {"type": "string"}
	}
}`

var compiledEventSchema = gojsonschema.NewStringLoader(eventSchema)

// ValidateEvent checks an event against the outbound payload schema.
func ValidateEvent(ev *Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event not serializable: %w", err)
	}

	result, err := gojsonschema.Validate(compiledEventSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid event: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// FormatMessage renders the channel message for an event. Each event
// type gets its own wording; the submission id is always included so
// the channel message can be traced back.
func FormatMessage(ev *Event) *Message {
	fields := map[string]string{"Submission": ev.SubmissionID}
	if ev.CustomerName != "" {
		fields["Customer"] = ev.CustomerName
	}
	if ev.AgentName != "" {
		fields["Agent"] = ev.AgentName
	}

	var text string
	switch ev.Type {
	case EventCallbackRequest:
		text = fmt.Sprintf(":telephone_receiver: Callback requested for %s", ev.CustomerName)
		if ev.PhoneNumber != "" {
			fields["Phone"] = ev.PhoneNumber
		}
		if ev.CallbackTime != "" {
			fields["Requested time"] = ev.CallbackTime
		}
	case EventCallDropped:
		text = fmt.Sprintf(":warning: Call dropped with %s", ev.CustomerName)
		if ev.Reason != "" {
			fields["Reason"] = ev.Reason
		}
	case EventCallDisconnected:
		text = fmt.Sprintf(":warning: Call disconnected with %s", ev.CustomerName)
		if ev.Reason != "" {
			fields["Reason"] = ev.Reason
		}
	case EventVerificationStarted:
		text = fmt.Sprintf(":white_check_mark: Verification started for %s", ev.CustomerName)
	case EventVerificationReconnected:
		text = fmt.Sprintf(":arrows_counterclockwise: Reconnected with %s, verification resumed", ev.CustomerName)
	case EventBufferConnected:
		text = fmt.Sprintf(":speech_balloon: %s connected with %s", ev.AgentName, ev.CustomerName)
	case EventApplicationOutcome:
		if ev.Outcome != nil && *ev.Outcome {
			text = fmt.Sprintf(":tada: Application submitted for %s", ev.CustomerName)
		} else {
			text = fmt.Sprintf(":x: Application not submitted for %s", ev.CustomerName)
			if ev.Reason != "" {
				fields["Reason"] = ev.Reason
			}
		}
	case EventBankingFixOutcome:
		if ev.Outcome != nil && *ev.Outcome {
			text = fmt.Sprintf(":white_check_mark: Banking details fixed for %s", ev.CustomerName)
		} else {
			text = fmt.Sprintf(":x: Banking details could not be fixed for %s", ev.CustomerName)
		}
	case EventCarrierRequirementFulfilled:
		text = fmt.Sprintf(":white_check_mark: Carrier requirement fulfilled for %s", ev.CustomerName)
		if ev.Carrier != "" {
			fields["Carrier"] = ev.Carrier
		}
		if ev.Requirement != "" {
			fields["Requirement"] = ev.Requirement
		}
	default:
		text = fmt.Sprintf("Update on %s", ev.CustomerName)
	}

	return &Message{Text: text, Fields: fields}
}
