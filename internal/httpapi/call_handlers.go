package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"live-support/internal/auth"
	"live-support/internal/calls"
	"live-support/internal/recording"

	"github.com/gin-gonic/gin"
)

type notifyRequest struct {
	CallerID   string `json:"caller_id"`
	CallerName string `json:"caller_name"`
	SessionID  string `json:"session_id"`
}

// NotifyCall is the caller's "please pick up" request.
func (h Handlers) NotifyCall(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if strings.TrimSpace(req.CallerID) == "" || strings.TrimSpace(req.SessionID) == "" {
		badRequest(c, "caller_id and session_id required")
		return
	}

	_, err := h.Calls.Notify(c.Request.Context(), calls.NotifyRequest{
		CallerID:   req.CallerID,
		CallerName: req.CallerName,
		SessionID:  req.SessionID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type respondRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	AgentID   string `json:"agent_id"`
}

// RespondCall applies an agent's accept or reject. agent_id defaults to the
// signed-in user's agent client id.
func (h Handlers) RespondCall(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	action := calls.Action(strings.ToLower(strings.TrimSpace(req.Action)))
	if strings.TrimSpace(req.SessionID) == "" || !action.Valid() {
		badRequest(c, "Invalid request")
		return
	}

	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		if username, err := auth.Username(c.Request.Context()); err == nil {
			agentID = "agent_" + username
		}
	}

	_, err := h.Calls.Respond(c.Request.Context(), strings.TrimSpace(req.SessionID), action, agentID)
	switch {
	case errors.Is(err, calls.ErrQuotaExceeded):
		writeErrorMsg(c, err, fmt.Sprintf("Daily call limit exceeded (%d calls)", h.Calls.DailyLimit()))
		return
	case errors.Is(err, calls.ErrCallNotFound):
		writeErrorMsg(c, err, "Call not found")
		return
	case err != nil:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "action": string(action)})
}

type endRequest struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
}

// EndCall ends an accepted call. Repeated or late end requests succeed.
func (h Handlers) EndCall(c *gin.Context) {
	var req endRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		badRequest(c, "session_id required")
		return
	}

	_, err := h.Calls.End(c.Request.Context(), strings.TrimSpace(req.SessionID), strings.TrimSpace(req.ClientID))
	if errors.Is(err, calls.ErrCallNotFound) {
		writeErrorMsg(c, err, "Call not found")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type historyItem struct {
	ID         string       `json:"id"`
	SessionID  string       `json:"session_id"`
	CallerName string       `json:"caller_name"`
	Status     calls.Status `json:"status"`
	StartTime  time.Time    `json:"start_time"`
	Duration   *int         `json:"duration"`
	AgentID    *string      `json:"agent_id"`
}

type pendingItem struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	CallerName string    `json:"caller_name"`
	StartTime  time.Time `json:"start_time"`
}

func (h Handlers) CallHistory(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rows, err := h.Calls.History(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]historyItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, toHistoryItem(r))
	}
	c.JSON(http.StatusOK, out)
}

func toHistoryItem(r calls.Call) historyItem {
	item := historyItem{
		ID:         r.ID,
		SessionID:  r.SessionID,
		CallerName: r.CallerName,
		Status:     r.Status,
		StartTime:  r.StartTime,
		Duration:   r.DurationSeconds,
	}
	if r.AgentID != "" {
		agent := r.AgentID
		item.AgentID = &agent
	}
	return item
}

func (h Handlers) PendingCalls(c *gin.Context) {
	rows, err := h.Calls.Pending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]pendingItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, pendingItem{ID: r.ID, SessionID: r.SessionID, CallerName: r.CallerName, StartTime: r.StartTime})
	}
	c.JSON(http.StatusOK, out)
}

type callDetail struct {
	historyItem
	CallerID   string               `json:"caller_id"`
	EndTime    *time.Time           `json:"end_time"`
	Recordings []recording.Metadata `json:"recordings"`
}

// CallDetail returns one call with the recordings saved for its session.
func (h Handlers) CallDetail(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := strings.TrimSpace(c.Param("session_id"))

	call, err := h.Calls.Get(ctx, sessionID)
	if errors.Is(err, calls.ErrCallNotFound) {
		writeErrorMsg(c, err, "Call not found")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	recs, err := h.Recording.Recordings(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := callDetail{
		historyItem: toHistoryItem(call),
		CallerID:    call.CallerID,
		EndTime:     call.EndTime,
		Recordings:  recs,
	}
	c.JSON(http.StatusOK, out)
}

// CallSummary reports one UTC day; ?day=YYYY-MM-DD, default today.
func (h Handlers) CallSummary(c *gin.Context) {
	day, err := h.Reporting.ParseDay(c.Query("day"))
	if err != nil {
		badRequest(c, "day must be YYYY-MM-DD")
		return
	}
	out, err := h.Reporting.Daily(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
