// cmd/handoff-server/handlers.go
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"handoff-coordinator/internal/calllog"
	apperrors "handoff-coordinator/internal/common/errors"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/dispatch"
	"handoff-coordinator/internal/models"
	"handoff-coordinator/internal/notify"
	"handoff-coordinator/internal/progress"
	"handoff-coordinator/internal/store"
)

// api is the request/response surface the agent clients call. Every
// invocation re-reads what it needs; there is no shared in-process
// mutable state.
type api struct {
	store      *store.Store
	recorder   *calllog.Recorder
	notifier   *notify.Manager
	dispatcher *dispatch.Dispatcher
	logger     logger.Logger
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", a.handleSessions)
	mux.HandleFunc("/api/sessions/", a.handleSession)
	mux.HandleFunc("/api/items/", a.handleItem)
	mux.HandleFunc("/api/notifications", a.handleNotifications)
	mux.HandleFunc("/api/notifications/", a.handleNotification)
	mux.HandleFunc("/api/events", a.handleEvent)
	mux.HandleFunc("/api/log", a.handleListLog)
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError reports a failure. Coded errors additionally carry their
// category and whether the client may usefully retry the request.
func (a *api) writeError(w http.ResponseWriter, status int, err error) {
	a.logger.Warn("request failed", map[string]interface{}{
		"status": status,
		"error":  err,
	})

	body := map[string]interface{}{"error": err.Error()}
	var se *apperrors.StandardError
	if errors.As(err, &se) {
		body["code"] = se.Code
		body["category"] = apperrors.GetErrorCategory(se.Code)
		body["retryable"] = apperrors.IsRetryableErrorCode(se.Code)
	}
	a.writeJSON(w, status, body)
}

func (a *api) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SubmissionID  string            `json:"submissionId"`
		BufferAgentID string            `json:"bufferAgentId"`
		Fields        []store.FieldSeed `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	session, items, err := a.store.CreateSession(r.Context(), req.SubmissionID, req.BufferAgentID, req.Fields)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
		"items":   items,
	})
}

func (a *api) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(rest, "/")
	sessionID := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		session, err := a.store.GetSession(r.Context(), sessionID)
		if err != nil {
			a.writeError(w, http.StatusNotFound, err)
			return
		}
		items, err := a.store.ListItems(r.Context(), sessionID)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]interface{}{
			"session":  session,
			"items":    items,
			"progress": progress.Compute(items),
		})

	case r.Method == http.MethodPatch && len(parts) == 2 && parts[1] == "status":
		var req struct {
			Status models.SessionStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		session, err := a.store.UpdateSessionStatus(r.Context(), sessionID, req.Status)
		if err != nil {
			a.writeError(w, http.StatusConflict, err)
			return
		}
		a.writeJSON(w, http.StatusOK, session)

	case r.Method == http.MethodPatch && len(parts) == 2 && parts[1] == "licensed-agent":
		var req struct {
			AgentID string `json:"agentId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		session, err := a.store.AssignLicensedAgent(r.Context(), sessionID, req.AgentID)
		if err != nil {
			a.writeError(w, http.StatusNotFound, err)
			return
		}
		a.writeJSON(w, http.StatusOK, session)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *api) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	itemID := strings.TrimPrefix(r.URL.Path, "/api/items/")

	var req struct {
		Verified *bool   `json:"verified,omitempty"`
		Value    *string `json:"value,omitempty"`
		Notes    *string `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	var item *models.VerificationItem
	var err error
	switch {
	case req.Verified != nil:
		item, err = a.store.SetItemVerified(r.Context(), itemID, *req.Verified)
	case req.Value != nil:
		item, err = a.store.SetItemValue(r.Context(), itemID, *req.Value)
	case req.Notes != nil:
		item, err = a.store.SetItemNotes(r.Context(), itemID, *req.Notes)
	default:
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nothing to update"})
		return
	}
	if err != nil {
		a.writeError(w, http.StatusNotFound, err)
		return
	}
	a.writeJSON(w, http.StatusOK, item)
}

// handleNotifications creates notifications and answers the recipient
// client's "what should I show right now" query. A reloaded client asks
// GET with its agent id and gets back the newest still-pending
// notification, or null when there is nothing to show.
func (a *api) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		recipientID := r.URL.Query().Get("recipientId")
		if recipientID == "" {
			a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipientId is required"})
			return
		}
		n, err := a.notifier.NextPending(r.Context(), recipientID)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]interface{}{"notification": n})
		return
	case http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req notify.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.notifier.Create(r.Context(), req)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"notification": res.Notification,
		"created":      res.Created,
		"alert":        a.notifier.ShouldAlert(r.Context(), res),
	})
}

func (a *api) handleNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "seen":
		if err := a.notifier.MarkSeen(r.Context(), id); err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.writeJSON(w, http.StatusOK, nil)
	case "acknowledge":
		ack, err := a.notifier.Acknowledge(r.Context(), id)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if ack == nil {
			a.writeJSON(w, http.StatusOK, map[string]string{"status": "already handled"})
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]interface{}{
			"notification": ack.Notification,
			"deepLink":     ack.DeepLink,
		})
	case "expire":
		if err := a.notifier.Expire(r.Context(), id); err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.writeJSON(w, http.StatusOK, nil)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleEvent records a call event and fans it out to the vendor
// channel. The dispatch result is reported alongside but a delivery
// failure never fails the request: the log write is the primary
// action.
func (a *api) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		calllog.Event
		Dispatch *dispatch.Event `json:"dispatch,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	entryID := a.recorder.Record(r.Context(), req.Event)

	resp := map[string]interface{}{"entryId": entryID}
	if req.Dispatch != nil {
		resp["dispatch"] = a.dispatcher.Dispatch(r.Context(), req.Dispatch)
	}
	a.writeJSON(w, http.StatusCreated, resp)
}

func (a *api) handleListLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := store.LogFilter{
		SubmissionID: q.Get("submissionId"),
		AgentID:      q.Get("agentId"),
		EventType:    models.CallEventType(q.Get("eventType")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.To = t
	}

	entries, err := a.recorder.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
