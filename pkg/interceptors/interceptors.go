// Package interceptors собирает цепочку gRPC интерсепторов сервера:
// восстановление после паники, трассировка, логирование и перевод ошибок
// приложения в gRPC статусы.
package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"energia/pkg/apperror"
	"energia/pkg/logger"
	"energia/pkg/telemetry"
)

// Config параметры цепочки
type Config struct {
	EnableTracing bool

	// LogStart дополнительно логирует начало вызова
	LogStart bool
}

// UnaryServerInterceptors возвращает unary интерсепторы в порядке применения
func UnaryServerInterceptors(cfg Config) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(recoverPanic)),
	}
	if cfg.EnableTracing {
		chain = append(chain, telemetry.UnaryServerInterceptor())
	}
	return append(chain,
		logging.UnaryServerInterceptor(SlogLogger(), loggingOptions(cfg)...),
		ErrorUnaryInterceptor,
	)
}

// StreamServerInterceptors возвращает stream интерсепторы в порядке применения
func StreamServerInterceptors(cfg Config) []grpc.StreamServerInterceptor {
	chain := []grpc.StreamServerInterceptor{
		recovery.StreamServerInterceptor(recovery.WithRecoveryHandlerContext(recoverPanic)),
	}
	if cfg.EnableTracing {
		chain = append(chain, telemetry.StreamServerInterceptor())
	}
	return append(chain,
		logging.StreamServerInterceptor(SlogLogger(), loggingOptions(cfg)...),
		ErrorStreamInterceptor,
	)
}

// ErrorUnaryInterceptor переводит ошибки приложения в gRPC статусы
func ErrorUnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, apperror.ToGRPC(err)
}

// ErrorStreamInterceptor то же для stream вызовов
func ErrorStreamInterceptor(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return apperror.ToGRPC(handler(srv, ss))
}

// SlogLogger адаптирует logger.Log к интерфейсу go-grpc-middleware.
// Уровни logging.Level совпадают с slog.Level.
func SlogLogger() logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		logger.Log.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func loggingOptions(cfg Config) []logging.Option {
	events := []logging.LoggableEvent{logging.FinishCall}
	if cfg.LogStart {
		events = append(events, logging.StartCall)
	}
	return []logging.Option{
		logging.WithLogOnEvents(events...),
		logging.WithLevels(codeToLevel),
	}
}

// codeToLevel: ошибки клиента - Warn, сбои сервера - Error, health - Debug
func codeToLevel(code codes.Code) logging.Level {
	switch code {
	case codes.OK:
		return logging.LevelDebug
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition,
		codes.ResourceExhausted, codes.Canceled, codes.DeadlineExceeded:
		return logging.LevelWarn
	default:
		return logging.LevelError
	}
}

func recoverPanic(ctx context.Context, p any) error {
	logger.Log.ErrorContext(ctx, "Panic in gRPC handler",
		"panic", p,
		"stack", string(debug.Stack()),
	)
	return apperror.ToGRPC(apperror.Newf(apperror.CodeInternal, "internal error: %v", p))
}
