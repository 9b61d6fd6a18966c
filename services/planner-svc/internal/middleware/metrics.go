package middleware

import (
	"net/http"
	"time"

	"energia/pkg/metrics"
)

// Metrics записывает метрики HTTP запросов. route сводит путь к шаблону,
// чтобы идентификаторы запусков не раздували число меток.
func Metrics(route func(*http.Request) string) func(http.Handler) http.Handler {
	m := metrics.Get()
	inFlight := metrics.NewInFlight(m.HTTPRequestsInFlight)
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer inFlight.Begin(r.Method)()

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			m.RecordHTTPRequest(r.Method, route(r), sw.code(), time.Since(start))
		})
	}
}

// RoutePattern шаблон маршрута из http.ServeMux ("GET /api/v1/runs/{id}")
// или путь, если маршрут не найден
func RoutePattern(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}
