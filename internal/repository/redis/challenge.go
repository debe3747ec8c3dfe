package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/swistakmatt/2fa-app/internal/core/domain"
	"github.com/swistakmatt/2fa-app/internal/core/port"
	"github.com/swistakmatt/2fa-app/internal/repository"
)

const (
	defaultChallengePrefix = "2fa:challenge"

	fieldCodeHash     = "code_hash"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
	fieldAttemptsLeft = "attempts_left"
)

// attemptScript resolves a verification attempt in a single atomic step so a
// concurrent attempt and resend cannot race the counter. It fails closed:
// absent, expired, and exhausted records never accept. A wrong code consumes
// one attempt; the attempt that drains the budget removes the record, which
// forces a fresh login.
var attemptScript = red.NewScript(`
local key = KEYS[1]
local submitted = ARGV[1]
local now = tonumber(ARGV[2])
local window_match = ARGV[3]

local values = redis.call('HMGET', key, 'code_hash', 'created_at', 'expires_at', 'attempts_left')
if not values[1] then
  return {'none'}
end

local expires = tonumber(values[3])
if now >= expires then
  redis.call('DEL', key)
  return {'expired'}
end

local left = tonumber(values[4])
if left <= 0 then
  redis.call('DEL', key)
  return {'exhausted'}
end

if submitted == values[1] or window_match == '1' then
  redis.call('DEL', key)
  return {'accepted', values[1], values[2], values[3], tostring(left)}
end

left = left - 1
if left <= 0 then
  redis.call('DEL', key)
  return {'exhausted'}
end

redis.call('HSET', key, 'attempts_left', tostring(left))
return {'rejected', tostring(left)}
`)

// rotateScript swaps the code hash and refreshes the expiry of a live
// challenge while preserving the consumed attempt budget. Absent or expired
// records report a miss instead of being resurrected.
var rotateScript = red.NewScript(`
local key = KEYS[1]
local new_hash = ARGV[1]
local now = tonumber(ARGV[2])
local new_expires = ARGV[3]
local ttl_ms = tonumber(ARGV[4])

local expires = redis.call('HGET', key, 'expires_at')
if not expires then
  return 0
end
if now >= tonumber(expires) then
  redis.call('DEL', key)
  return 0
end

redis.call('HSET', key, 'code_hash', new_hash, 'expires_at', new_expires)
redis.call('PEXPIRE', key, ttl_ms)
return 1
`)

// ChallengeRepository persists pending second-factor challenges in Redis
// hashes, one per user.
type ChallengeRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewChallengeRepository constructs a challenge repository with the provided
// Redis client and key prefix.
func NewChallengeRepository(client *red.Client, keyPrefix string) *ChallengeRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &ChallengeRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *ChallengeRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Start creates a challenge with a full attempt budget, replacing any
// existing record for the user.
func (r *ChallengeRepository) Start(ctx context.Context, userID, codeHash string, ttl time.Duration, attemptCap int) error {
	userID = strings.TrimSpace(userID)
	codeHash = strings.TrimSpace(codeHash)

	switch {
	case userID == "":
		return errors.New("user id is required")
	case codeHash == "":
		return errors.New("code hash is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	case attemptCap <= 0:
		return errors.New("attempt cap must be positive")
	}

	now := r.now().UTC()
	key := r.key(userID)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCodeHash:     codeHash,
		fieldCreatedAt:    strconv.FormatInt(now.UnixMilli(), 10),
		fieldExpiresAt:    strconv.FormatInt(now.Add(ttl).UnixMilli(), 10),
		fieldAttemptsLeft: strconv.Itoa(attemptCap),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis start challenge: %w", err)
	}

	return nil
}

// Attempt resolves a verification attempt atomically.
func (r *ChallengeRepository) Attempt(ctx context.Context, userID, codeHash string, windowMatch bool) (domain.PendingChallenge, port.AttemptResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.PendingChallenge{}, port.AttemptResult{}, errors.New("user id is required")
	}

	match := "0"
	if windowMatch {
		match = "1"
	}

	raw, err := attemptScript.Run(ctx, r.client, []string{r.key(userID)},
		codeHash, r.now().UTC().UnixMilli(), match).Result()
	if err != nil {
		return domain.PendingChallenge{}, port.AttemptResult{}, fmt.Errorf("redis attempt challenge: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) == 0 {
		return domain.PendingChallenge{}, port.AttemptResult{}, fmt.Errorf("redis attempt challenge: unexpected reply %T", raw)
	}

	switch fmt.Sprint(reply[0]) {
	case "accepted":
		challenge, err := r.challengeFromReply(userID, reply)
		if err != nil {
			return domain.PendingChallenge{}, port.AttemptResult{}, err
		}
		return challenge, port.AttemptResult{Outcome: port.AttemptAccepted, Remaining: challenge.RemainingAttempts}, nil
	case "rejected":
		remaining, err := replyInt(reply, 1)
		if err != nil {
			return domain.PendingChallenge{}, port.AttemptResult{}, err
		}
		return domain.PendingChallenge{}, port.AttemptResult{Outcome: port.AttemptRejected, Remaining: remaining}, nil
	case "expired":
		return domain.PendingChallenge{}, port.AttemptResult{Outcome: port.AttemptExpired}, nil
	case "exhausted":
		return domain.PendingChallenge{}, port.AttemptResult{Outcome: port.AttemptExhausted}, nil
	default:
		return domain.PendingChallenge{}, port.AttemptResult{Outcome: port.AttemptNoChallenge}, nil
	}
}

// Rotate replaces the code hash and refreshes the expiry of a live challenge.
func (r *ChallengeRepository) Rotate(ctx context.Context, userID, codeHash string, ttl time.Duration) error {
	userID = strings.TrimSpace(userID)
	codeHash = strings.TrimSpace(codeHash)

	switch {
	case userID == "":
		return errors.New("user id is required")
	case codeHash == "":
		return errors.New("code hash is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	now := r.now().UTC()
	updated, err := rotateScript.Run(ctx, r.client, []string{r.key(userID)},
		codeHash, now.UnixMilli(), strconv.FormatInt(now.Add(ttl).UnixMilli(), 10), ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis rotate challenge: %w", err)
	}
	if updated == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Get returns the active challenge for the user, treating expired records as
// absent.
func (r *ChallengeRepository) Get(ctx context.Context, userID string) (*domain.PendingChallenge, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	challenge, err := r.parseChallenge(userID, values)
	if err != nil {
		return nil, err
	}
	if challenge.Expired(r.now().UTC()) {
		return nil, repository.ErrNotFound
	}

	return challenge, nil
}

// Clear removes the challenge for the user, if any.
func (r *ChallengeRepository) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis clear challenge: %w", err)
	}

	return nil
}

func (r *ChallengeRepository) key(userID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, userID)
}

func (r *ChallengeRepository) parseChallenge(userID string, values map[string]string) (*domain.PendingChallenge, error) {
	codeHash := strings.TrimSpace(values[fieldCodeHash])
	if codeHash == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnixMilli(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := parseUnixMilli(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(values[fieldAttemptsLeft]))
	if err != nil {
		return nil, fmt.Errorf("parse attempts_left: %w", err)
	}

	return &domain.PendingChallenge{
		UserID:            userID,
		CodeHash:          codeHash,
		CreatedAt:         createdAt,
		ExpiresAt:         expiresAt,
		RemainingAttempts: remaining,
	}, nil
}

func (r *ChallengeRepository) challengeFromReply(userID string, reply []interface{}) (domain.PendingChallenge, error) {
	if len(reply) < 5 {
		return domain.PendingChallenge{}, fmt.Errorf("redis attempt challenge: truncated reply")
	}

	createdAt, err := parseUnixMilli(fmt.Sprint(reply[2]))
	if err != nil {
		return domain.PendingChallenge{}, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := parseUnixMilli(fmt.Sprint(reply[3]))
	if err != nil {
		return domain.PendingChallenge{}, fmt.Errorf("parse expires_at: %w", err)
	}
	remaining, err := replyInt(reply, 4)
	if err != nil {
		return domain.PendingChallenge{}, err
	}

	return domain.PendingChallenge{
		UserID:            userID,
		CodeHash:          fmt.Sprint(reply[1]),
		CreatedAt:         createdAt,
		ExpiresAt:         expiresAt,
		RemainingAttempts: remaining,
	}, nil
}

func replyInt(reply []interface{}, idx int) (int, error) {
	if idx >= len(reply) {
		return 0, fmt.Errorf("redis attempt challenge: truncated reply")
	}
	v, err := strconv.Atoi(fmt.Sprint(reply[idx]))
	if err != nil {
		return 0, fmt.Errorf("redis attempt challenge: parse reply: %w", err)
	}
	return v, nil
}

func parseUnixMilli(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v).UTC(), nil
}

var _ port.ChallengeStore = (*ChallengeRepository)(nil)
