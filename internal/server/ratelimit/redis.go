package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] = sends zset, ARGV = now_ms, window_ms, cap, member.
// Returns {1, 0} when admitted, {0, oldest_ms} when full.
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, tonumber(oldest[2])}
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, 0}
`)

type redisClient interface {
	redis.Scripter
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisLimiter keeps the window in a per-phone sorted set. The challenge
// row is written after admission; a failed write gives the slot back.
type RedisLimiter struct {
	client redisClient
	repos  repomanager.RepositoryManager
	cfg    Config
	clock  timex.Clock
	prefix string
	log    logging.Logger
}

func NewRedisLimiter(client redisClient, repos repomanager.RepositoryManager, cfg Config, clock timex.Clock, log logging.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		repos:  repos,
		cfg:    cfg,
		clock:  clock,
		prefix: "secureshare:otp-sends:",
		log:    log.With("module", "ratelimit"),
	}
}

func (l *RedisLimiter) Name() string { return "redis" }

func (l *RedisLimiter) IsReady(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLimiter) Reserve(ctx context.Context, phone string, create CreateFunc) (Decision, error) {
	key := l.prefix + phone
	member := uuid.NewString()
	now := l.clock.Now()

	res, err := reserveScript.Run(ctx, l.client, []string{key},
		now.UnixMilli(), l.cfg.Window.Milliseconds(), l.cfg.Cap, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	if res[0] == 0 {
		oldest := time.UnixMilli(res[1]).UTC()
		return Decision{RemainingMinutes: RemainingMinutes(oldest, l.cfg.Window, now)}, nil
	}

	if err := create(ctx, l.repos.Conn()); err != nil {
		// context may already be done; release with a fresh one
		if rerr := l.client.ZRem(context.WithoutCancel(ctx), key, member).Err(); rerr != nil {
			l.log.Warn(ctx, "failed to release rate limit slot", "error", rerr)
		}
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}
