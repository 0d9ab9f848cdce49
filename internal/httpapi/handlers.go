package httpapi

import (
	"context"
	"time"

	"live-support/internal/audit"
	"live-support/internal/auth"
	"live-support/internal/calls"
	"live-support/internal/notify"
	"live-support/internal/otp"
	"live-support/internal/ratelimit"
	"live-support/internal/recording"
	"live-support/internal/reporting"
	"live-support/internal/users"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	OTP       *otp.Store
	Limiter   *ratelimit.Limiter
	Users     *users.Service
	Notifier  notify.Notifier
	Calls     *calls.Service
	Recording *recording.Manager
	Reporting *reporting.Service
	Audit     *audit.Service

	// OTPRequestRule caps OTP requests per username.
	OTPRequestRule ratelimit.Rule

	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]func(ctx context.Context) error

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}
