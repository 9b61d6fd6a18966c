// Package main точка входа planner-svc.
//
// planner-svc компилирует сценарии энергосистемы в смешанно-целочисленную
// задачу, решает её и хранит историю запусков.
//
// # HTTP API
//
//	POST   /api/v1/compile            сводка скомпилированной задачи
//	POST   /api/v1/solve              решение; query: relax, max_nodes, timeout, no_cache
//	POST   /api/v1/export/lp          модель в формате CPLEX LP
//	GET    /api/v1/runs               история; query: limit, offset, scenario, scenario_hash, status, objective, since
//	GET    /api/v1/runs/{id}          запуск со значениями переменных
//	DELETE /api/v1/runs/{id}
//	GET    /api/v1/runs/{id}/report   отчёт; query: format=xlsx|pdf
//
// Тело запросов compile, solve и export - сценарий в YAML или JSON.
// Служебные маршруты: /health, /ready, /metrics, /swagger/.
//
// # Configuration
//
// Конфигурация читается из config.yaml и переменных окружения с префиксом
// ENERGIA_ (приоритет у окружения):
//
//	ENERGIA_HTTP_PORT              - порт HTTP API (default: 8080)
//	ENERGIA_GRPC_PORT              - порт gRPC health (default: 50051)
//	ENERGIA_DATABASE_HOST          - Postgres для истории; пусто - история в памяти
//	ENERGIA_CACHE_DRIVER           - memory, redis (default: memory)
//	ENERGIA_RATE_LIMIT_ENABLED     - ограничение compile/solve/export (default: true)
//	ENERGIA_SOLVER_MAX_NODES       - предел узлов branch-and-bound (default: 10000)
//	ENERGIA_SOLVER_TIMEOUT         - предел времени решения (default: 2m)
//	ENERGIA_COMPILER_DEMAND_SIGN   - geq, leq, eq (default: по сценарию)
//
// # Graceful Shutdown
//
// По SIGINT/SIGTERM сервер перестаёт быть готовым, дожидается текущих
// запросов и закрывает лимитер, кэш и пул соединений с базой.
package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"energia/pkg/cache"
	"energia/pkg/config"
	"energia/pkg/logger"
	"energia/pkg/metrics"
	"energia/pkg/ratelimit"
	"energia/pkg/server"
	"energia/services/planner-svc/internal/handlers"
	"energia/services/planner-svc/internal/repository"
	"energia/services/planner-svc/internal/service"
)

func main() {
	cfg, err := config.LoadWithServiceDefaults("planner-svc", 50051)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	// =========================================================================
	// Metrics
	// =========================================================================
	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if err := prometheus.Register(metrics.NewRuntimeCollector(cfg.Metrics.Namespace, "runtime")); err != nil {
		logger.Log.Warn("Failed to register runtime collector", "error", err)
	}

	// =========================================================================
	// Storage
	// =========================================================================
	repos, err := repository.NewRepositories(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize repositories", "error", err)
	}

	plans, err := cache.NewPlanCacheFromConfig(&cfg.Cache)
	if err != nil {
		logger.Log.Warn("Failed to create plan cache, continuing without cache", "error", err)
	} else if plans != nil {
		logger.Log.Info("Plan cache initialized",
			"driver", cfg.Cache.Driver,
			"ttl", cfg.Cache.DefaultTTL,
		)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(ratelimit.FromConfig(cfg.RateLimit, cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create rate limiter, continuing without limits", "error", err)
			limiter = nil
		}
	}

	// =========================================================================
	// Service and transport
	// =========================================================================
	planner := service.New(service.OptionsFromConfig(cfg), repos.Runs, plans)
	api := handlers.NewPlannerHandler(planner, cfg.HTTP.MaxBodyBytes).Handler(cfg, limiter)

	readiness := map[string]server.Check{"runs": planner.Ping}

	srv := server.New(cfg, server.Options{
		API:       api,
		Readiness: readiness,
		OnShutdown: []func(context.Context) error{
			func(context.Context) error {
				if limiter == nil {
					return nil
				}
				return limiter.Close()
			},
			func(context.Context) error { return plans.Close() },
			func(context.Context) error {
				repos.Close()
				return nil
			},
		},
	})

	logger.Log.Info("Starting planner service",
		"http_port", cfg.HTTP.Port,
		"grpc_port", cfg.GRPC.Port,
		"persistent_history", repos.Persistent(),
		"cache_enabled", plans != nil,
		"rate_limit_enabled", limiter != nil,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}
}
