package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"live-support/internal/apperr"
	"live-support/internal/audit"
	"live-support/internal/auth"
	"live-support/internal/otp"
	"live-support/internal/ratelimit"
	"live-support/internal/users"
	"live-support/pkg/logger"

	"github.com/gin-gonic/gin"
)

const actionOTPRequest = "otp_request"

type requestOTPRequest struct {
	Username string `json:"username"`
}

// RequestOTP issues a login code and delivers it to the admin chat.
func (h Handlers) RequestOTP(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	var req requestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		badRequest(c, "username required")
		return
	}

	if err := h.Limiter.Check(ctx, username, actionOTPRequest, h.OTPRequestRule); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			writeErrorMsg(c, err, "Too many OTP requests. Try again later.")
			return
		}
		writeError(c, err)
		return
	}

	if _, err := h.Users.Lookup(ctx, username); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeErrorMsg(c, err, "User not found")
			return
		}
		writeError(c, err)
		return
	}

	code, err := h.OTP.Issue(ctx, username)
	if err != nil {
		writeError(c, err)
		return
	}

	sent, err := h.Notifier.SendOTP(ctx, username, code)
	if err != nil {
		log.Warn("otp delivery failed", "username", username, "err", err)
	}
	if err != nil || !sent {
		// Nobody received this code.
		if cerr := h.OTP.Clear(ctx, username); cerr != nil {
			log.Warn("otp clear failed", "username", username, "err", cerr)
		}
	}
	h.Audit.LogOTP(ctx, audit.EventOTPRequested, username, c.ClientIP(), "")

	msg := "OTP sent to Telegram"
	switch {
	case err != nil:
		msg = "OTP delivery failed"
	case !sent:
		msg = "Telegram not configured"
	}
	c.JSON(http.StatusOK, gin.H{"ok": sent, "message": msg})
}

type verifyOTPRequest struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func tokens(p auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
	}
}

// VerifyOTP exchanges a valid code for a token pair. Store failures are
// treated as a failed verification.
func (h Handlers) VerifyOTP(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	username := strings.TrimSpace(req.Username)
	code := strings.TrimSpace(req.OTP)
	if username == "" || code == "" {
		badRequest(c, "username and otp required")
		return
	}

	outcome, err := h.OTP.Check(ctx, username, code)
	if err != nil {
		log.Error("otp check failed", "username", username, "err", err)
	}
	if outcome != otp.OutcomeVerified {
		h.Audit.LogOTP(ctx, audit.EventOTPFailed, username, c.ClientIP(), outcome.String())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired OTP"})
		return
	}

	u, err := h.Users.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeErrorMsg(c, err, "User not found")
			return
		}
		writeError(c, err)
		return
	}

	pair, err := h.Auth.IssuePair(h.now(), u.Username, u.Role())
	if err != nil {
		writeErrorMsg(c, err, "token issuance failed")
		return
	}
	h.Audit.LogOTP(ctx, audit.EventOTPVerified, username, c.ClientIP(), "")
	c.JSON(http.StatusOK, tokens(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a token pair. The role is re-read from the account so a
// demoted user cannot keep an elevated role.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		badRequest(c, "refresh_token required")
		return
	}

	claims, err := h.Auth.Verify(strings.TrimSpace(req.RefreshToken), auth.TokenTypeRefresh, h.now())
	if err != nil {
		writeErrorMsg(c, err, "invalid token")
		return
	}
	u, err := h.Users.Lookup(c.Request.Context(), claims.Username())
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeErrorMsg(c, apperr.New(apperr.ErrUnauthorized, err.Error()), "invalid token")
			return
		}
		writeError(c, err)
		return
	}

	pair, err := h.Auth.IssuePair(h.now(), u.Username, u.Role())
	if err != nil {
		writeErrorMsg(c, err, "token issuance failed")
		return
	}
	c.JSON(http.StatusOK, tokens(pair))
}
