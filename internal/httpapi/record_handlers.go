package httpapi

import (
	"errors"
	"net/http"

	"live-support/internal/apperr"
	"live-support/internal/audit"
	"live-support/internal/recording"
	"live-support/pkg/logger"

	"github.com/gin-gonic/gin"
)

type recordOfferRequest struct {
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// RecordOffer starts a server-side recorder and answers the browser's offer.
func (h Handlers) RecordOffer(c *gin.Context) {
	var req recordOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.SDP == "" {
		badRequest(c, "sdp required")
		return
	}

	key := recording.NewKey(req.SessionID, req.Role)
	answer, err := h.Recording.Start(c.Request.Context(), key, recording.Description{Type: req.Type, SDP: req.SDP})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeError(c, err)
			return
		}
		logger.FromGin(c).Error("record offer failed", "key", key.String(), "err", err)
		writeErrorMsg(c, err, "record offer failed")
		return
	}
	c.JSON(http.StatusOK, answer)
}

type recordStopRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

func (h Handlers) RecordStop(c *gin.Context) {
	var req recordStopRequest
	// An empty body stops the sessionless recorder.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
	}

	key := recording.NewKey(req.SessionID, req.Role)
	md, ok, err := h.Recording.Stop(c.Request.Context(), key)
	if err != nil {
		logger.FromGin(c).Error("record stop failed", "key", key.String(), "err", err)
		writeErrorMsg(c, err, "stop failed")
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "no active recorder"})
		return
	}

	if key.HasSession() {
		h.Audit.Record(c.Request.Context(), audit.Event{
			Type:      audit.EventRecordingSaved,
			Actor:     key.Role,
			IPAddress: c.ClientIP(),
			SessionID: md.SessionID,
			Message:   md.FilePath,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "file": md.FilePath, "files": md.Files, "size": md.Size})
}
