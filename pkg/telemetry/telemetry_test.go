package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// record подменяет глобальный провайдер записывающим на время теста
func record(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{ServiceName: "energia-planner"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.tp)
	assert.NoError(t, p.Shutdown(context.Background()))

	var none *Provider
	assert.NoError(t, none.Shutdown(context.Background()))
}

func TestRootSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), rootSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), rootSampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), rootSampler(0.25).Description())
}

func TestStartSpan_CompileStage(t *testing.T) {
	rec := record(t)

	ctx, span := StartSpan(context.Background(), "Compiler.variables",
		WithAttributes(attribute.String(AttrCompileStage, "variables")),
	)
	SetAttributes(ctx, ProblemAttributes(120, 6, 95)...)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "Compiler.variables", got.Name())
	assert.Equal(t, instrumentation, got.InstrumentationScope().Name)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "variables", attrs[AttrCompileStage].AsString())
	assert.Equal(t, int64(6), attrs[AttrProblemBinaries].AsInt64())
}

func TestSetError(t *testing.T) {
	rec := record(t)

	ctx, span := StartSpan(context.Background(), "Planner.Solve")
	SetError(ctx, context.DeadlineExceeded)
	span.End()

	got := rec.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, context.DeadlineExceeded.Error(), got.Status().Description)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "exception", got.Events()[0].Name)
}

func TestScenarioAttributes(t *testing.T) {
	attrs := ScenarioAttributes("seasonal", "cost", 1, 3)

	if len(attrs) != 4 {
		t.Errorf("expected 4 attributes, got %d", len(attrs))
	}

	expected := map[string]bool{
		AttrScenarioName:      true,
		AttrScenarioObjective: true,
		AttrScenarioLocations: true,
		AttrScenarioProcesses: true,
	}

	for _, attr := range attrs {
		key := string(attr.Key)
		if !expected[key] {
			t.Errorf("unexpected attribute key: %s", key)
		}
	}
}

func TestProblemAttributes(t *testing.T) {
	attrs := ProblemAttributes(100, 4, 80)

	if len(attrs) != 3 {
		t.Errorf("expected 3 attributes, got %d", len(attrs))
	}
}

func TestSolveAttributes(t *testing.T) {
	attrs := SolveAttributes("gonum-simplex", "optimal", 7, 12.5)

	if len(attrs) != 4 {
		t.Errorf("expected 4 attributes, got %d", len(attrs))
	}
}

func TestHTTPMiddleware(t *testing.T) {
	rec := record(t)
	var sawSpan bool
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.SpanFromContext(r.Context()).SpanContext().IsValid()
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.True(t, sawSpan, "handler should see a span in context")
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "GET /api/v1/runs", rec.Ended()[0].Name())
}

func TestUnaryServerInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor()

	if interceptor == nil {
		t.Error("UnaryServerInterceptor should not return nil")
	}
}

func TestStreamServerInterceptor(t *testing.T) {
	interceptor := StreamServerInterceptor()

	if interceptor == nil {
		t.Error("StreamServerInterceptor should not return nil")
	}
}
