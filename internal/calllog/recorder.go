// internal/calllog/recorder.go

// Package calllog appends immutable call events and serves the read
// side that feeds per-agent statistics. Writes must never block an
// agent's workflow: a log failure is logged and swallowed, not
// surfaced.
package calllog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"handoff-coordinator/internal/common/config"
	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/common/metrics"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/store"
)

// LogStore is the persistence slice the recorder needs. Satisfied by
// *store.Store.
type LogStore interface {
	InsertLogEntry(ctx context.Context, e *models.CallUpdateLogEntry) error
	MarkRetention(ctx context.Context, id string) error
	ListLog(ctx context.Context, f store.LogFilter) ([]models.CallUpdateLogEntry, error)
	CountBySubmission(ctx context.Context, submissionID string) (map[models.CallEventType]int, error)
}

// NameResolver resolves agent ids to display names. Satisfied by
// *directory.Directory.
type NameResolver interface {
	DisplayName(ctx context.Context, agentID string) string
}

// Event is one discrete agent action to record.
type Event struct {
	SubmissionID    string               `json:"submissionId"`
	AgentID         string               `json:"agentId"`
	AgentType       models.AgentType     `json:"agentType"`
	Type            models.CallEventType `json:"eventType"`
	Details         *models.EventDetails `json:"details,omitempty"`
	SessionID       string               `json:"sessionId,omitempty"`
	NotificationID  string               `json:"notificationId,omitempty"`
	CallResultID    string               `json:"callResultId,omitempty"`
	CustomerName    string               `json:"customerName,omitempty"`
	VendorName      string               `json:"vendorName,omitempty"`
	IsRetentionCall bool                 `json:"isRetentionCall,omitempty"`
}

type Recorder struct {
	store  LogStore
	names  NameResolver
	es     *elasticsearch.Client
	cfg    config.CallLogConfig
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(st LogStore, names NameResolver, es *elasticsearch.Client, cfg config.CallLogConfig, log logger.Logger) *Recorder {
	return &Recorder{
		store:  st,
		names:  names,
		es:     es,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "calllog"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one log entry and returns its id. On failure it
// returns the empty string; the caller's workflow proceeds either way.
func (r *Recorder) Record(ctx context.Context, ev Event) string {
	entry := &models.CallUpdateLogEntry{
		ID:              uuid.New().String(),
		SubmissionID:    ev.SubmissionID,
		AgentID:         ev.AgentID,
		AgentType:       ev.AgentType,
		EventType:       ev.Type,
		Details:         ev.Details,
		SessionID:       ev.SessionID,
		NotificationID:  ev.NotificationID,
		CallResultID:    ev.CallResultID,
		CustomerName:    ev.CustomerName,
		VendorName:      ev.VendorName,
		IsRetentionCall: ev.IsRetentionCall,
		CreatedAt:       r.now(),
	}
	if r.names != nil {
		entry.AgentName = r.names.DisplayName(ctx, ev.AgentID)
	}

	if err := r.store.InsertLogEntry(ctx, entry); err != nil {
		r.logger.Error("call event not recorded", map[string]interface{}{
			"event_type":    string(ev.Type),
			"submission_id": ev.SubmissionID,
			"agent_id":      ev.AgentID,
			"error":         err,
		})
		return ""
	}
	metrics.CallLogEntries.WithLabelValues(string(ev.Type)).Inc()

	r.index(ctx, entry)
	return entry.ID
}

// FlagRetention marks an already-recorded entry as a retention call.
// The flag arrives after the fact, so this is best-effort too.
func (r *Recorder) FlagRetention(ctx context.Context, entryID string) {
	if entryID == "" {
		return
	}
	if err := r.store.MarkRetention(ctx, entryID); err != nil {
		r.logger.Warn("retention flag not applied", map[string]interface{}{
			"entry_id": entryID,
			"error":    err,
		})
	}
}

// List serves the filtered read side, newest first.
func (r *Recorder) List(ctx context.Context, f store.LogFilter) ([]models.CallUpdateLogEntry, error) {
	return r.store.ListLog(ctx, f)
}

// SubmissionCounts returns per-event-type counts for one lead.
func (r *Recorder) SubmissionCounts(ctx context.Context, submissionID string) (map[models.CallEventType]int, error) {
	return r.store.CountBySubmission(ctx, submissionID)
}

// index mirrors the entry into the search index for the statistics
// dashboards. Failure never propagates: Postgres already holds the
// entry.
func (r *Recorder) index(ctx context.Context, entry *models.CallUpdateLogEntry) {
	if !r.cfg.IndexingOn || r.es == nil {
		return
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return
	}

	res, err := r.es.Index(
		r.cfg.SearchIndex,
		bytes.NewReader(body),
		r.es.Index.WithDocumentID(entry.ID),
		r.es.Index.WithContext(ctx),
	)
	if err != nil {
		r.logIndexFailure(entry.ID, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, err))
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logIndexFailure(entry.ID, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, fmt.Errorf("index response: %s", res.Status())))
	}
}

func (r *Recorder) logIndexFailure(entryID string, err error) {
	r.logger.Warn("call event not indexed", map[string]interface{}{
		"entry_id": entryID,
		"error":    err,
	})
}

// AgentDailyStats aggregates one agent's event counts for a calendar
// day from the search index.
func (r *Recorder) AgentDailyStats(ctx context.Context, agentID string, day time.Time) (map[models.CallEventType]int, error) {
	if r.es == nil {
		return nil, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, fmt.Errorf("search client not configured"))
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"agentId": agentID}},
					{"range": map[string]interface{}{
						"createdAt": map[string]interface{}{
							"gte": dayStart.Format(time.RFC3339),
							"lt":  dayStart.Add(24 * time.Hour).Format(time.RFC3339),
						},
					}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"by_event": map[string]interface{}{
				"terms": map[string]interface{}{"field": "eventType", "size": 50},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, err)
	}

	res, err := r.es.Search(
		r.es.Search.WithContext(ctx),
		r.es.Search.WithIndex(r.cfg.SearchIndex),
		r.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, fmt.Errorf("search response: %s", res.Status()))
	}

	var decoded struct {
		Aggregations struct {
			ByEvent struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_event"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewSearchIndexFailedError(r.cfg.SearchIndex, err)
	}

	out := make(map[models.CallEventType]int, len(decoded.Aggregations.ByEvent.Buckets))
	for _, bucket := range decoded.Aggregations.ByEvent.Buckets {
		out[models.CallEventType(bucket.Key)] = bucket.DocCount
	}
	return out, nil
}
