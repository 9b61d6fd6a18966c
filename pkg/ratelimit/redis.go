package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript атомарно чистит окно, считает запросы и добавляет n
// новых отметок. Возвращает {allowed, remaining}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local count = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

	local current = redis.call('ZCARD', key)
	if current + count > limit then
		return {0, limit - current}
	end

	local seq = redis.call('INCR', key .. ':seq')
	for i = 1, count do
		redis.call('ZADD', key, now, now .. ':' .. seq .. ':' .. i)
	end
	redis.call('PEXPIRE', key, window + 1000)
	redis.call('PEXPIRE', key .. ':seq', window + 1000)
	return {1, limit - current - count}
`)

// RedisLimiter Redis-based rate limiter со скользящим окном. Общий для
// всех реплик planner-svc.
type RedisLimiter struct {
	client *redis.Client
	config *Config
	prefix string
}

// NewRedisLimiter создаёт Redis rate limiter
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.RedisPrefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisLimiter{
		client: client,
		config: cfg,
		prefix: prefix,
	}, nil
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *RedisLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	now := time.Now().UnixMilli()
	window := l.config.Window.Milliseconds()

	result, err := slidingWindowScript.Run(ctx, l.client, []string{l.key(key)},
		l.config.Requests, window, now, n).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) == 0 {
		return false, errors.New("unexpected empty result from redis script")
	}

	return result[0] == 1, nil
}

func (l *RedisLimiter) Wait(ctx context.Context, key string) error {
	return waitLoop(ctx, func() (bool, error) { return l.Allow(ctx, key) })
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key), l.key(key)+":seq").Err()
}

func (l *RedisLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	now := time.Now()
	windowStart := now.Add(-l.config.Window).UnixMilli()
	redisKey := l.key(key)

	count, err := l.client.ZCount(ctx, redisKey, "("+strconv.FormatInt(windowStart, 10), "+inf").Result()
	if err != nil {
		return nil, err
	}

	info := &LimitInfo{
		Limit:     l.config.Requests,
		Remaining: max(l.config.Requests-int(count), 0),
		ResetAt:   now.Add(l.config.Window),
	}

	// Окно освобождается, когда выпадает самая старая отметка
	oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		info.ResetAt = time.UnixMilli(int64(oldest[0].Score)).Add(l.config.Window)
	}
	if info.Remaining == 0 {
		info.RetryAfter = max(info.ResetAt.Sub(now), 0)
	}

	return info, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
