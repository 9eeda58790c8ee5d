// internal/dispatch/dispatcher.go

// Package dispatch posts handoff events to the vendor's chat channel.
// Delivery is strictly best-effort: one attempt, structured result,
// and never an error that could abort the caller's primary write.
package dispatch

import (
	"context"
	"time"

	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/common/metrics"
	"handoff-coordinator/internal/routing"
)

// ErrCodeInvalidEvent marks a payload that failed schema validation
// before any delivery was attempted.
const ErrCodeInvalidEvent = "INVALID_EVENT_PAYLOAD"

// Result is the structured outcome of one dispatch.
type Result struct {
	OK        bool   `json:"ok"`
	Channel   string `json:"channel,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type Dispatcher struct {
	table  *routing.Table
	api    ChatAPI
	logger logger.Logger
}

func NewDispatcher(table *routing.Table, api ChatAPI, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		table:  table,
		api:    api,
		logger: log.WithFields(map[string]interface{}{"component": "dispatch"}),
	}
}

// Dispatch validates, routes and posts one event. It never returns an
// error: every failure mode is folded into the Result and logged with
// enough context to diagnose without replaying the triggering action.
// A vendor with no channel mapping is a defined branch, not a failure
// of the caller's workflow.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) Result {
	start := time.Now()
	log := d.logger.WithFields(map[string]interface{}{
		"event_type":    string(ev.Type),
		"submission_id": ev.SubmissionID,
		"vendor":        ev.VendorName,
	})

	if err := ValidateEvent(ev); err != nil {
		log.Warn("dispatch rejected invalid event", map[string]interface{}{"error": err})
		metrics.DispatchAttempts.WithLabelValues(string(ev.Type), "invalid").Inc()
		return Result{OK: false, ErrorCode: ErrCodeInvalidEvent}
	}

	channel, ok := d.table.Resolve(ev.VendorName)
	if !ok {
		log.Info("no channel mapping for vendor, skipping external dispatch", nil)
		metrics.DispatchAttempts.WithLabelValues(string(ev.Type), "unmapped").Inc()
		return Result{OK: false, ErrorCode: string(apperrors.ErrCodeVendorMappingMissing)}
	}

	msg := FormatMessage(ev)
	messageID, err := d.api.PostMessage(ctx, channel, msg)
	metrics.DispatchDuration.WithLabelValues(string(ev.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		code := errorCode(err)
		log.Error("external dispatch failed", map[string]interface{}{
			"channel":    channel,
			"error_code": code,
			"error":      err,
		})
		metrics.DispatchAttempts.WithLabelValues(string(ev.Type), "failed").Inc()
		return Result{OK: false, Channel: channel, ErrorCode: code}
	}

	log.Info("event dispatched", map[string]interface{}{
		"channel":    channel,
		"message_id": messageID,
	})
	metrics.DispatchAttempts.WithLabelValues(string(ev.Type), "delivered").Inc()
	return Result{OK: true, Channel: channel, MessageID: messageID}
}

func errorCode(err error) string {
	if stdErr, ok := err.(*apperrors.StandardError); ok {
		return string(stdErr.Code)
	}
	return string(apperrors.ErrCodeChannelAPIError)
}
