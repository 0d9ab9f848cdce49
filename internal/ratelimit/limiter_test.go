package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-support/internal/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otpRule = Rule{Limit: 3, Window: time.Minute}

func newLimiter(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewLimiter(rdb)
}

func TestCheck_RejectsFourthRequestInWindow(t *testing.T) {
	mr, l := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check(ctx, "alice", "otp_request", otpRule))
	}
	err := l.Check(ctx, "alice", "otp_request", otpRule)
	assert.ErrorIs(t, err, ErrLimited)
	assert.ErrorIs(t, err, apperr.ErrRateLimited)

	// other identities are independent
	assert.NoError(t, l.Check(ctx, "bob", "otp_request", otpRule))

	mr.FastForward(61 * time.Second)
	assert.NoError(t, l.Check(ctx, "alice", "otp_request", otpRule))
}

func TestAllow_ReportsCount(t *testing.T) {
	_, l := newLimiter(t)
	d, err := l.Allow(context.Background(), "alice", "otp_request", otpRule)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.EqualValues(t, 1, d.Count)
	assert.Equal(t, 3, d.Limit)
}

func TestAllow_StoreDownFailsClosed(t *testing.T) {
	mr, l := newLimiter(t)
	mr.Close()

	err := l.Check(context.Background(), "alice", "otp_request", otpRule)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnavailable))
}

func TestAllow_InvalidInput(t *testing.T) {
	_, l := newLimiter(t)
	_, err := l.Allow(context.Background(), "", "otp_request", otpRule)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = l.Allow(context.Background(), "alice", "otp_request", Rule{})
	assert.Error(t, err)
}
