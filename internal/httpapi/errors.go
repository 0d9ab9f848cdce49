package httpapi

import (
	"errors"
	"net/http"

	"live-support/internal/apperr"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest
	case apperr.ErrRateLimited:
		return http.StatusTooManyRequests
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status and aborts. Taxonomy errors carry
// caller-safe messages; anything else is reported generically and the detail
// only reaches the request log.
func writeError(c *gin.Context, err error) {
	writeErrorMsg(c, err, "")
}

// writeErrorMsg is writeError with an explicit client message.
func writeErrorMsg(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	status := statusFor(err)
	if msg == "" {
		switch status {
		case http.StatusInternalServerError:
			msg = "internal error"
		case http.StatusServiceUnavailable:
			msg = "service temporarily unavailable"
		default:
			msg = publicMessage(err)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// publicMessage is the outermost taxonomy sentinel's text, without any
// operation prefixes added by wrapping.
func publicMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k := apperr.Kind(e); k != nil && errors.Unwrap(e) == k {
			return e.Error()
		}
	}
	return err.Error()
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
