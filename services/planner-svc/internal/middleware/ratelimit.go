package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"energia/pkg/apperror"
	"energia/pkg/logger"
	"energia/pkg/metrics"
	"energia/pkg/ratelimit"
)

// RateLimit ограничивает частоту запросов по ключу extractor. Ошибка
// лимитера пропускает запрос (fail open).
func RateLimit(limiter ratelimit.Limiter, extractor ratelimit.KeyExtractor) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if extractor == nil {
		extractor = ratelimit.CompositeKeyExtractor(ratelimit.RouteKeyExtractor, ratelimit.ClientIPKeyExtractor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := extractor(r)

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.Log.Warn("Rate limit check failed", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}

			info, infoErr := limiter.GetInfo(ctx, key)
			if infoErr != nil {
				logger.Log.Warn("Failed to get rate limit info", "error", infoErr, "key", key)
				info = &ratelimit.LimitInfo{ResetAt: time.Now().Add(time.Minute)}
			}

			h := w.Header()
			h.Set("X-Ratelimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-Ratelimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-Ratelimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			metrics.Get().RecordRateLimit(RoutePattern(r), allowed)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := info.RetryAfter
			if retry <= 0 {
				retry = time.Until(info.ResetAt)
			}
			seconds := max(int(retry.Round(time.Second)/time.Second), 1)
			h.Set("Retry-After", strconv.Itoa(seconds))

			logger.Log.Warn("Rate limit exceeded",
				"key", key,
				"limit", info.Limit,
				"retry_after", retry,
			)

			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // client gone
				"error": map[string]any{
					"code":    apperror.CodeRateLimited,
					"message": apperror.ErrRateLimited.Message,
					"details": map[string]any{"retry_after_seconds": seconds},
				},
			})
		})
	}
}
