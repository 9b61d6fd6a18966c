package interceptors

import (
	"context"
	"errors"
	"testing"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"energia/pkg/apperror"
	"energia/pkg/logger"
)

func init() {
	logger.Init("error")
}

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func okHandler(_ context.Context, _ any) (any, error) {
	return "response", nil
}

// chain применяет интерсепторы так же, как grpc.ChainUnaryInterceptor
func chain(interceptors []grpc.UnaryServerInterceptor, handler grpc.UnaryHandler) grpc.UnaryHandler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		next, current := handler, interceptors[i]
		handler = func(ctx context.Context, req any) (any, error) {
			return current(ctx, req, info, next)
		}
	}
	return handler
}

func TestUnaryServerInterceptors(t *testing.T) {
	if got := len(UnaryServerInterceptors(Config{})); got != 3 {
		t.Errorf("len = %d, want 3", got)
	}
	if got := len(UnaryServerInterceptors(Config{EnableTracing: true})); got != 4 {
		t.Errorf("len with tracing = %d, want 4", got)
	}
	if got := len(StreamServerInterceptors(Config{EnableTracing: true})); got != 4 {
		t.Errorf("stream len with tracing = %d, want 4", got)
	}
}

func TestChain_Success(t *testing.T) {
	h := chain(UnaryServerInterceptors(Config{LogStart: true}), okHandler)

	resp, err := h(context.Background(), "request")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "response" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestChain_PanicRecovery(t *testing.T) {
	h := chain(UnaryServerInterceptors(Config{}), func(context.Context, any) (any, error) {
		panic("test panic")
	})

	_, err := h(context.Background(), "request")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != codes.Internal {
		t.Errorf("code = %v, want Internal", st.Code())
	}
}

func TestChain_AppError(t *testing.T) {
	h := chain(UnaryServerInterceptors(Config{}), func(context.Context, any) (any, error) {
		return nil, apperror.New(apperror.CodeInfeasibleProblem, "demand exceeds capacity")
	})

	_, err := h(context.Background(), "request")
	if got := status.Code(err); got != codes.FailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", got)
	}
}

func TestErrorUnaryInterceptor(t *testing.T) {
	_, err := ErrorUnaryInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, apperror.New(apperror.CodeNotFound, "run not found")
	})
	if got := status.Code(err); got != codes.NotFound {
		t.Errorf("code = %v, want NotFound", got)
	}

	_, err = ErrorUnaryInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("boom")
	})
	if got := status.Code(err); got != codes.Internal {
		t.Errorf("code = %v, want Internal", got)
	}

	resp, err := ErrorUnaryInterceptor(context.Background(), nil, info, okHandler)
	if err != nil || resp != "response" {
		t.Errorf("got (%v, %v), want (response, nil)", resp, err)
	}
}

func TestErrorStreamInterceptor(t *testing.T) {
	err := ErrorStreamInterceptor(nil, nil, &grpc.StreamServerInfo{FullMethod: "/x"}, func(any, grpc.ServerStream) error {
		return apperror.ErrTimeout
	})
	if got := status.Code(err); got != codes.DeadlineExceeded {
		t.Errorf("code = %v, want DeadlineExceeded", got)
	}
}

func TestCodeToLevel(t *testing.T) {
	tests := []struct {
		code codes.Code
		want logging.Level
	}{
		{codes.OK, logging.LevelDebug},
		{codes.InvalidArgument, logging.LevelWarn},
		{codes.NotFound, logging.LevelWarn},
		{codes.DeadlineExceeded, logging.LevelWarn},
		{codes.Internal, logging.LevelError},
		{codes.Unavailable, logging.LevelError},
	}
	for _, tt := range tests {
		if got := codeToLevel(tt.code); got != tt.want {
			t.Errorf("codeToLevel(%v) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
