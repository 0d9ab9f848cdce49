package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"live-support/internal/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 3
	codeDigits         = 6
)

// Outcome describes why a verification succeeded or failed.
type Outcome int

const (
	OutcomeMissing Outcome = iota
	OutcomeMismatch
	OutcomeExhausted
	OutcomeVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "missing"
	}
}

type entry struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

// verifyScript performs the whole check-and-update in one round trip so
// concurrent verifications of the same identity cannot share an attempt.
//
// Returns 3 verified, 2 exhausted, 1 mismatch, 0 missing.
var verifyScript = redis.NewScript(`
-- KEYS[1] = otp key
-- ARGV[1] = candidate code
-- ARGV[2] = max attempts
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local ok, entry = pcall(cjson.decode, raw)
if not ok or type(entry) ~= 'table' then
  redis.call('DEL', KEYS[1])
  return 0
end
local attempts = tonumber(entry['attempts']) or 0
if attempts >= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return 2
end
if entry['code'] == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 3
end
entry['attempts'] = attempts + 1
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], cjson.encode(entry), 'PX', ttl)
else
  redis.call('DEL', KEYS[1])
end
return 1
`)

type Options struct {
	TTL         time.Duration
	MaxAttempts int
}

// Store keeps one pending code per identity in Redis.
type Store struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	maxAttempts int
	random      io.Reader
}

func NewStore(rdb redis.Cmdable, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Store{rdb: rdb, ttl: opts.TTL, maxAttempts: opts.MaxAttempts, random: rand.Reader}
}

func key(identity string) string { return "otp:" + identity }

// Issue generates a fresh code for identity, replacing any pending one and
// resetting its attempt counter.
func (s *Store) Issue(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", apperr.New(apperr.ErrInvalidInput, "identity is required")
	}
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(entry{Code: code})
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, key(identity), raw, s.ttl).Err(); err != nil {
		return "", apperr.Unavailable("otp issue", err)
	}
	return code, nil
}

// Check verifies candidate and reports the detailed outcome. On a store error
// the outcome is OutcomeMissing and the error wraps apperr.ErrUnavailable.
func (s *Store) Check(ctx context.Context, identity, candidate string) (Outcome, error) {
	if identity == "" || candidate == "" {
		return OutcomeMissing, nil
	}
	n, err := verifyScript.Run(ctx, s.rdb, []string{key(identity)}, candidate, s.maxAttempts).Int()
	if err != nil {
		return OutcomeMissing, apperr.Unavailable("otp verify", err)
	}
	switch n {
	case 3:
		return OutcomeVerified, nil
	case 2:
		return OutcomeExhausted, nil
	case 1:
		return OutcomeMismatch, nil
	default:
		return OutcomeMissing, nil
	}
}

// Verify reports whether candidate matches the pending code. Any failure,
// including an unreachable store, yields false.
func (s *Store) Verify(ctx context.Context, identity, candidate string) (bool, error) {
	o, err := s.Check(ctx, identity, candidate)
	return o == OutcomeVerified, err
}

// Clear drops any pending code for identity.
func (s *Store) Clear(ctx context.Context, identity string) error {
	if err := s.rdb.Del(ctx, key(identity)).Err(); err != nil {
		return apperr.Unavailable("otp clear", err)
	}
	return nil
}

func (s *Store) generate() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(codeDigits), nil)
	n, err := rand.Int(s.random, limit)
	if err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
