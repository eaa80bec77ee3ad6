package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"werkstattguard/internal/ratelimit/models"
)

const (
	windowKeyPrefix  = "rl:window:"
	bucketKeyPrefix  = "rl:bucket:"
	penaltyKeyPrefix = "rl:penalty:"
	trustKeyPrefix   = "rl:trust:"

	// stateTTL bounds how long idle penalty and trust state lives. Long
	// enough to outlast the 24h lockout cap and the decay interval.
	stateTTL = 7 * 24 * time.Hour
)

// takeScript refills and spends a token bucket in one atomic server-side
// step. Times are passed in float seconds.
var takeScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

local elapsed = now - last
if elapsed > 0 then
  tokens = tokens + elapsed * refill
  if tokens > capacity then
    tokens = capacity
  end
end

local allowed = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {tostring(tokens), allowed}
`)

// RedisStore keeps rate limit state in Redis so every instance of the
// service shares one view of the counters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed rate limit store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Observe(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	redisKey := windowKeyPrefix + key
	cutoff := now.Add(-window).UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("observe window %q: %w", key, err)
	}

	count := int(card.Val())
	entries := oldest.Val()
	if len(entries) == 0 {
		return count, now, nil
	}
	return count, time.Unix(0, int64(entries[0].Score)), nil
}

func (s *RedisStore) Take(ctx context.Context, key string, capacity, refillRate, cost float64, now time.Time) (float64, bool, error) {
	// TTL long enough for an empty bucket to fully refill.
	ttl := time.Hour
	if refillRate > 0 {
		if full := time.Duration(capacity / refillRate * float64(time.Second)); full > ttl {
			ttl = full
		}
	}

	raw, err := takeScript.Run(ctx, s.client,
		[]string{bucketKeyPrefix + key},
		capacity,
		refillRate,
		cost,
		float64(now.UnixNano())/float64(time.Second),
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return 0, false, fmt.Errorf("take from bucket %q: %w", key, err)
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 2 {
		return 0, false, fmt.Errorf("take from bucket %q: unexpected reply %T", key, raw)
	}
	remaining, err := strconv.ParseFloat(fmt.Sprint(reply[0]), 64)
	if err != nil {
		return 0, false, fmt.Errorf("take from bucket %q: parse tokens: %w", key, err)
	}
	allowed, _ := reply[1].(int64)
	return remaining, allowed == 1, nil
}

func (s *RedisStore) GetPenalty(ctx context.Context, key string) (*models.PenaltyState, error) {
	raw, err := s.client.Get(ctx, penaltyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get penalty state %q: %w", key, err)
	}
	var state models.PenaltyState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode penalty state %q: %w", key, err)
	}
	return &state, nil
}

func (s *RedisStore) SavePenalty(ctx context.Context, key string, state models.PenaltyState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode penalty state %q: %w", key, err)
	}
	if err := s.client.Set(ctx, penaltyKeyPrefix+key, raw, stateTTL).Err(); err != nil {
		return fmt.Errorf("save penalty state %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) GetTrust(ctx context.Context, identifier string) (*models.TrustProfile, error) {
	raw, err := s.client.Get(ctx, trustKeyPrefix+identifier).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trust profile %q: %w", identifier, err)
	}
	var profile models.TrustProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode trust profile %q: %w", identifier, err)
	}
	return &profile, nil
}

func (s *RedisStore) SaveTrust(ctx context.Context, profile models.TrustProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode trust profile %q: %w", profile.Identifier, err)
	}
	if err := s.client.Set(ctx, trustKeyPrefix+profile.Identifier, raw, stateTTL).Err(); err != nil {
		return fmt.Errorf("save trust profile %q: %w", profile.Identifier, err)
	}
	return nil
}
