// Package server поднимает транспорт planner-svc: JSON API поверх HTTP
// (h2c, чтобы один порт обслуживал и HTTP/1.1, и HTTP/2) и gRPC порт со
// стандартным health сервисом для оркестратора.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"energia/gen/openapi"
	"energia/pkg/config"
	"energia/pkg/interceptors"
	"energia/pkg/logger"
	"energia/pkg/metrics"
	"energia/pkg/swagger"
	"energia/pkg/telemetry"
)

// Check проверка готовности зависимости (БД, кэш)
type Check func(ctx context.Context) error

// Options дополнительные опции сервера
type Options struct {
	// API обработчик маршрутов /api/
	API http.Handler

	// Readiness проверки для /ready по имени зависимости
	Readiness map[string]Check

	// OnShutdown вызываются после остановки транспорта, в порядке добавления
	OnShutdown []func(ctx context.Context) error
}

// Server HTTP + gRPC сервер планировщика
type Server struct {
	config     *config.Config
	options    Options
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	telemetry  *telemetry.Provider
	ready      atomic.Bool
}

// New создаёт сервер. Слушать порты начинает Run.
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{
		config:  cfg,
		options: opts,
		health:  health.NewServer(),
	}

	s.grpcServer = newGRPCServer(cfg)
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	if cfg.IsDevelopment() {
		reflection.Register(s.grpcServer)
		logger.Log.Debug("gRPC reflection enabled")
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return s
}

func newGRPCServer(cfg *config.Config) *grpc.Server {
	chain := interceptors.Config{
		EnableTracing: cfg.Tracing.Enabled,
		LogStart:      cfg.App.Debug,
	}
	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     cfg.GRPC.KeepAlive.MaxConnectionIdle,
			MaxConnectionAge:      cfg.GRPC.KeepAlive.MaxConnectionAge,
			MaxConnectionAgeGrace: cfg.GRPC.KeepAlive.MaxConnectionAgeGrace,
			Time:                  cfg.GRPC.KeepAlive.Time,
			Timeout:               cfg.GRPC.KeepAlive.Timeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(interceptors.UnaryServerInterceptors(chain)...),
		grpc.ChainStreamInterceptor(interceptors.StreamServerInterceptors(chain)...),
	}
	if cfg.GRPC.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize))
	}
	if cfg.GRPC.MaxSendMsgSize > 0 {
		opts = append(opts, grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMsgSize))
	}
	if cfg.GRPC.MaxConcurrentConn > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentConn)))
	}
	if cfg.GRPC.TLS.Enabled {
		logger.Log.Warn("TLS is enabled but not implemented yet")
	}
	return grpc.NewServer(opts...)
}

// Handler возвращает корневой HTTP обработчик без h2c обёртки
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	if s.config.Swagger.Enabled {
		if spec, err := openapi.Spec(s.config.App.Version); err != nil {
			logger.Log.Error("Failed to load OpenAPI spec", "error", err)
		} else {
			cfg := swagger.DefaultConfig()
			if s.config.Swagger.Title != "" {
				cfg.Title = s.config.Swagger.Title
			}
			swagger.RegisterRoutes(mux, cfg, spec)
		}
	}

	if s.options.API != nil {
		mux.Handle("/api/", s.options.API)
	}
	return mux
}

// GRPC возвращает *grpc.Server для регистрации дополнительных сервисов
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Ready сообщает, принимает ли сервер трафик
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Run запускает сервер и блокируется до отмены ctx или SIGINT/SIGTERM
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.initTelemetry(ctx)
	s.startMetricsServer()

	lc := net.ListenConfig{}
	httpLis, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen http: %w", err)
	}
	grpcLis, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.config.GRPC.Port))
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("failed to listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Log.Info("Starting HTTP server",
			"service", s.config.App.Name,
			"port", s.config.HTTP.Port,
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Log.Info("Starting gRPC health server", "port", s.config.GRPC.Port)
		if err := s.grpcServer.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if m := metrics.Get(); m != nil {
		m.SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(s.config.App.Name, grpc_health_v1.HealthCheckResponse_SERVING)
	s.ready.Store(true)

	var runErr error
	select {
	case runErr = <-errCh:
		logger.Log.Error("Server failed", "error", runErr)
	case <-ctx.Done():
		logger.Log.Info("Received shutdown signal")
	}

	s.shutdown()
	return runErr
}

func (s *Server) initTelemetry(ctx context.Context) {
	if !s.config.Tracing.Enabled {
		return
	}
	serviceName := s.config.Tracing.ServiceName
	if serviceName == "" {
		serviceName = s.config.App.Name
	}
	tp, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     true,
		Endpoint:    s.config.Tracing.Endpoint,
		ServiceName: serviceName,
		Version:     s.config.App.Version,
		Environment: s.config.App.Environment,
		SampleRate:  s.config.Tracing.SampleRate,
	})
	if err != nil {
		logger.Log.Warn("Failed to init telemetry", "error", err)
		return
	}
	s.telemetry = tp
	logger.Log.Info("Telemetry initialized",
		"endpoint", s.config.Tracing.Endpoint,
		"sample_rate", s.config.Tracing.SampleRate,
	)
}

// startMetricsServer поднимает отдельный порт метрик, если он задан и
// отличается от HTTP порта; /metrics на основном порту доступен всегда.
func (s *Server) startMetricsServer() {
	if !s.config.Metrics.Enabled || s.config.Metrics.Port == 0 || s.config.Metrics.Port == s.config.HTTP.Port {
		return
	}
	go func() {
		logger.Log.Info("Starting metrics server",
			"port", s.config.Metrics.Port,
			"path", s.config.Metrics.Path,
		)
		if err := metrics.StartMetricsServer(s.config.Metrics.Port); err != nil {
			logger.Log.Error("Metrics server failed", "error", err)
		}
	}()
}

func (s *Server) shutdown() {
	timeout := s.config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.ready.Store(false)
	s.health.Shutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Log.Warn("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Log.Warn("Forcing gRPC server stop")
		s.grpcServer.Stop()
	}

	for _, fn := range s.options.OnShutdown {
		if err := fn(ctx); err != nil {
			logger.Log.Warn("Shutdown hook failed", "error", err)
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}

	logger.Log.Info("Server stopped gracefully")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.options.Readiness))
	ready := s.ready.Load()
	for name, check := range s.options.Readiness {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Debug("Failed to write response", "error", err)
	}
}
