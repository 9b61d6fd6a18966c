// Package ratelimit ограничивает частоту тяжёлых запросов к планировщику.
// Решение сценария может занимать минуты, поэтому лимит считается на
// клиента и на маршрут, а не на сервис целиком.
package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"energia/pkg/config"
)

// Стандартные ошибки
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrLimiterClosed     = errors.New("limiter is closed")
)

// Стратегии подсчёта
const (
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

// DefaultRedisPrefix префикс ключей лимитера в Redis
const DefaultRedisPrefix = "energia:ratelimit:"

// Limiter интерфейс ограничителя запросов
type Limiter interface {
	// Allow проверяет, разрешён ли запрос
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN проверяет, разрешены ли n запросов
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// Wait блокирует до получения разрешения
	Wait(ctx context.Context, key string) error

	// Reset сбрасывает лимит для ключа
	Reset(ctx context.Context, key string) error

	// GetInfo возвращает информацию о текущем состоянии
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Close закрывает лимитер
	Close() error
}

// LimitInfo информация о состоянии лимита
type LimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Config конфигурация rate limiter
type Config struct {
	// Requests количество запросов за окно
	Requests int

	// Window временное окно
	Window time.Duration

	// Strategy стратегия (sliding_window, token_bucket)
	Strategy string

	// Backend хранилище (memory, redis)
	Backend string

	// BurstSize размер burst для token bucket
	BurstSize int

	// CleanupInterval интервал очистки для in-memory
	CleanupInterval time.Duration

	// Redis настройки Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Requests:        30,
		Window:          time.Minute,
		Strategy:        StrategySlidingWindow,
		Backend:         "memory",
		BurstSize:       5,
		CleanupInterval: 5 * time.Minute,
		RedisPrefix:     DefaultRedisPrefix,
	}
}

// FromConfig собирает конфигурацию лимитера из секции rate_limit.
// Пароль и база Redis берутся из секции cache, если адрес совпадает.
func FromConfig(rl config.RateLimitConfig, cache config.CacheConfig) *Config {
	cfg := DefaultConfig()
	if rl.Requests > 0 {
		cfg.Requests = rl.Requests
	}
	if rl.Window > 0 {
		cfg.Window = rl.Window
	}
	if rl.Strategy != "" {
		cfg.Strategy = rl.Strategy
	}
	if rl.Backend != "" {
		cfg.Backend = rl.Backend
	}
	if rl.BurstSize > 0 {
		cfg.BurstSize = rl.BurstSize
	}
	if rl.CleanupInterval > 0 {
		cfg.CleanupInterval = rl.CleanupInterval
	}

	cfg.RedisAddr = rl.RedisAddr
	if cfg.RedisAddr == "" && cache.Host != "" {
		cfg.RedisAddr = cache.Address()
	}
	if cfg.RedisAddr == cache.Address() {
		cfg.RedisPassword = cache.Password
		cfg.RedisDB = cache.DB
	}
	return cfg
}

// New создаёт лимитер на основе конфигурации
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisLimiter(cfg)
	default:
		return NewMemoryLimiter(cfg), nil
	}
}

// KeyExtractor извлекает ключ лимита из HTTP запроса
type KeyExtractor func(r *http.Request) string

// ClientIPKeyExtractor извлекает ключ по IP клиента
func ClientIPKeyExtractor(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// Первый адрес - исходный клиент
		if first, _, _ := strings.Cut(fwd, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RouteKeyExtractor извлекает ключ по пути запроса
func RouteKeyExtractor(r *http.Request) string {
	return r.URL.Path
}

// CompositeKeyExtractor комбинирует несколько ключей
func CompositeKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, ext := range extractors {
			parts = append(parts, ext(r))
		}
		return strings.Join(parts, ":")
	}
}
