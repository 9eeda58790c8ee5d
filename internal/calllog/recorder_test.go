// internal/calllog/recorder_test.go
package calllog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"handoff-coordinator/internal/common/config"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLogStore keeps entries in memory.
type memLogStore struct {
	entries   []*models.CallUpdateLogEntry
	insertErr error
}

func (s *memLogStore) InsertLogEntry(ctx context.Context, e *models.CallUpdateLogEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *memLogStore) MarkRetention(ctx context.Context, id string) error {
	for _, e := range s.entries {
		if e.ID == id {
			e.IsRetentionCall = true
			return nil
		}
	}
	return errors.New("no such entry")
}

func (s *memLogStore) ListLog(ctx context.Context, f store.LogFilter) ([]models.CallUpdateLogEntry, error) {
	var out []models.CallUpdateLogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if f.SubmissionID != "" && e.SubmissionID != f.SubmissionID {
			continue
		}
		if f.AgentID != "" && e.AgentID != f.AgentID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *memLogStore) CountBySubmission(ctx context.Context, submissionID string) (map[models.CallEventType]int, error) {
	out := map[models.CallEventType]int{}
	for _, e := range s.entries {
		if e.SubmissionID == submissionID {
			out[e.EventType]++
		}
	}
	return out, nil
}

type staticNames map[string]string

func (n staticNames) DisplayName(ctx context.Context, agentID string) string {
	if name, ok := n[agentID]; ok {
		return name
	}
	return agentID
}

func testCallLogConfig() config.CallLogConfig {
	return config.CallLogConfig{
		SearchIndex:  "call-update-log",
		IndexingOn:   false,
		DirectoryTTL: 30,
	}
}

func droppedEvent() Event {
	return Event{
		SubmissionID: "sub-001",
		AgentID:      "buffer-001",
		AgentType:    models.AgentTypeBuffer,
		Type:         models.EventCallDropped,
		Details:      &models.EventDetails{Reason: "customer hung up", DurationSecs: 42},
		SessionID:    "sess-001",
		CustomerName: "J. Customer",
		VendorName:   "acme-leads",
	}
}

func TestRecord_AppendsEnrichedEntry(t *testing.T) {
	st := &memLogStore{}
	names := staticNames{"buffer-001": "Pat Rivera"}
	r := NewRecorder(st, names, nil, testCallLogConfig(), logger.NewTestLogger(t))

	id := r.Record(context.Background(), droppedEvent())

	require.NotEmpty(t, id)
	require.Len(t, st.entries, 1)
	entry := st.entries[0]
	assert.Equal(t, "Pat Rivera", entry.AgentName)
	assert.Equal(t, models.EventCallDropped, entry.EventType)
	assert.Equal(t, 42, entry.Details.DurationSecs)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestRecord_FailureReturnsEmptyIDWithoutError(t *testing.T) {
	st := &memLogStore{insertErr: errors.New("disk full")}
	r := NewRecorder(st, nil, nil, testCallLogConfig(), logger.NewTestLogger(t))

	id := r.Record(context.Background(), droppedEvent())

	assert.Empty(t, id)
	assert.Empty(t, st.entries)
}

func TestFlagRetention(t *testing.T) {
	st := &memLogStore{}
	r := NewRecorder(st, nil, nil, testCallLogConfig(), logger.NewTestLogger(t))

	id := r.Record(context.Background(), droppedEvent())
	r.FlagRetention(context.Background(), id)

	assert.True(t, st.entries[0].IsRetentionCall)
}

func TestFlagRetention_EmptyIDIsNoOp(t *testing.T) {
	st := &memLogStore{}
	r := NewRecorder(st, nil, nil, testCallLogConfig(), logger.NewTestLogger(t))

	r.FlagRetention(context.Background(), "")
	assert.Empty(t, st.entries)
}

func TestList_FiltersBySubmission(t *testing.T) {
	st := &memLogStore{}
	r := NewRecorder(st, nil, nil, testCallLogConfig(), logger.NewTestLogger(t))

	r.Record(context.Background(), droppedEvent())
	other := droppedEvent()
	other.SubmissionID = "sub-002"
	r.Record(context.Background(), other)

	entries, err := r.List(context.Background(), store.LogFilter{SubmissionID: "sub-001"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sub-001", entries[0].SubmissionID)
}

func newTestESClient(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return es
}

func TestRecord_MirrorsToSearchIndex(t *testing.T) {
	indexed := make(chan string, 1)
	es := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		var doc models.CallUpdateLogEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		indexed <- doc.SubmissionID
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"result": "created"})
	})

	cfg := testCallLogConfig()
	cfg.IndexingOn = true
	r := NewRecorder(&memLogStore{}, nil, es, cfg, logger.NewTestLogger(t))

	id := r.Record(context.Background(), droppedEvent())
	require.NotEmpty(t, id)

	select {
	case sub := <-indexed:
		assert.Equal(t, "sub-001", sub)
	case <-time.After(2 * time.Second):
		t.Fatal("entry never reached the index")
	}
}

func TestRecord_IndexFailureDoesNotLoseTheEntry(t *testing.T) {
	es := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	cfg := testCallLogConfig()
	cfg.IndexingOn = true
	st := &memLogStore{}
	r := NewRecorder(st, nil, es, cfg, logger.NewTestLogger(t))

	id := r.Record(context.Background(), droppedEvent())

	assert.NotEmpty(t, id)
	assert.Len(t, st.entries, 1)
}

func TestAgentDailyStats(t *testing.T) {
	es := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"aggregations": map[string]interface{}{
				"by_event": map[string]interface{}{
					"buckets": []map[string]interface{}{
						{"key": "call_picked_up", "doc_count": 7},
						{"key": "call_dropped", "doc_count": 2},
					},
				},
			},
		})
	})

	r := NewRecorder(&memLogStore{}, nil, es, testCallLogConfig(), logger.NewTestLogger(t))

	stats, err := r.AgentDailyStats(context.Background(), "buffer-001", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 7, stats[models.EventCallPickedUp])
	assert.Equal(t, 2, stats[models.EventCallDropped])
}
