// Package handlers JSON API planner-svc поверх net/http.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"energia/pkg/apperror"
	"energia/pkg/config"
	"energia/pkg/logger"
	"energia/pkg/ratelimit"
	"energia/pkg/scenario"
	"energia/pkg/telemetry"
	"energia/services/planner-svc/internal/loader"
	"energia/services/planner-svc/internal/middleware"
	"energia/services/planner-svc/internal/repository"
	"energia/services/planner-svc/internal/service"
)

// Planner операции сервиса, которые использует API
type Planner interface {
	Compile(ctx context.Context, s *scenario.Scenario) (*service.CompileResult, error)
	ExportLP(ctx context.Context, s *scenario.Scenario, w io.Writer) error
	Solve(ctx context.Context, s *scenario.Scenario, ov service.SolveOverrides) (*repository.Run, error)
	ListRuns(ctx context.Context, opts *repository.ListOptions) ([]*repository.Run, int64, error)
	GetRun(ctx context.Context, id string) (*repository.Run, error)
	DeleteRun(ctx context.Context, id string) error
	Report(ctx context.Context, id, format string) (*service.Report, error)
}

// PlannerHandler обработчики /api/v1
type PlannerHandler struct {
	planner  Planner
	maxBytes int64
}

// NewPlannerHandler создаёт handler
func NewPlannerHandler(planner Planner, maxBodyBytes int64) *PlannerHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = loader.DefaultMaxBytes
	}
	return &PlannerHandler{planner: planner, maxBytes: maxBodyBytes}
}

// Routes регистрирует маршруты. Тяжёлые операции (compile, solve, export)
// проходят через limiter; nil limiter отключает ограничение.
func (h *PlannerHandler) Routes(mux *http.ServeMux, limiter ratelimit.Limiter) {
	limited := middleware.RateLimit(limiter, nil)

	mux.Handle("POST /api/v1/compile", limited(http.HandlerFunc(h.Compile)))
	mux.Handle("POST /api/v1/solve", limited(http.HandlerFunc(h.Solve)))
	mux.Handle("POST /api/v1/export/lp", limited(http.HandlerFunc(h.ExportLP)))

	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("DELETE /api/v1/runs/{id}", h.DeleteRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/report", h.Report)
}

// Handler собирает API целиком: маршруты и общую цепочку middleware
func (h *PlannerHandler) Handler(cfg *config.Config, limiter ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux, limiter)

	// Metrics стоит ближе всех к mux: шаблон маршрута пишется в тот же *http.Request
	var handler http.Handler = middleware.Metrics(middleware.RoutePattern)(mux)
	handler = middleware.CORS(cfg.HTTP.CORS)(handler)
	handler = middleware.Logging(handler)
	return telemetry.HTTPMiddleware(handler)
}

func (h *PlannerHandler) Compile(w http.ResponseWriter, r *http.Request) {
	s, err := h.decodeScenario(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.planner.Compile(r.Context(), s)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PlannerHandler) Solve(w http.ResponseWriter, r *http.Request) {
	ov, err := parseOverrides(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s, err := h.decodeScenario(r)
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := h.planner.Solve(r.Context(), s, ov)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *PlannerHandler) ExportLP(w http.ResponseWriter, r *http.Request) {
	s, err := h.decodeScenario(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Модель собирается целиком до записи, чтобы ошибка компиляции
	// ушла клиенту с правильным статусом
	var buf bytes.Buffer
	if err := h.planner.ExportLP(r.Context(), s, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.Name+`.lp"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Log.Debug("Failed to write LP model", "error", err)
	}
}

// runsPage ответ GET /api/v1/runs
type runsPage struct {
	Runs   []*repository.Run `json:"runs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (h *PlannerHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	runs, total, err := h.planner.ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*repository.Run{}
	}
	writeJSON(w, http.StatusOK, runsPage{
		Runs:   runs,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

func (h *PlannerHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.planner.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *PlannerHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.DeleteRun(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlannerHandler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.planner.Report(r.Context(), r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", rep.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rep.Data); err != nil {
		logger.Log.Debug("Failed to write report", "error", err, "run_id", rep.Filename)
	}
}

func (h *PlannerHandler) decodeScenario(r *http.Request) (*scenario.Scenario, error) {
	if r.Body == nil {
		return nil, apperror.New(apperror.CodeNilInput, "request body is empty")
	}
	return loader.Decode(r.Body, h.maxBytes)
}

// parseOverrides читает relax, max_nodes, timeout и no_cache из query
func parseOverrides(r *http.Request) (service.SolveOverrides, error) {
	var ov service.SolveOverrides
	q := r.URL.Query()

	if v := q.Get("relax"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ov, invalidQuery("relax", v)
		}
		ov.Relax = &b
	}
	if v := q.Get("max_nodes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ov, invalidQuery("max_nodes", v)
		}
		ov.MaxNodes = &n
	}
	if v := q.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return ov, invalidQuery("timeout", v)
		}
		ov.Timeout = &d
	}
	if v := q.Get("no_cache"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ov, invalidQuery("no_cache", v)
		}
		ov.NoCache = b
	}
	return ov, nil
}

func parseListOptions(r *http.Request) (*repository.ListOptions, error) {
	q := r.URL.Query()
	opts := &repository.ListOptions{Limit: 20}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperror.NewWithField(apperror.CodeInvalidPagination, "limit must be an integer", "limit")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperror.NewWithField(apperror.CodeInvalidPagination, "offset must be an integer", "offset")
		}
		opts.Offset = n
	}

	filter := &repository.ListFilter{
		ScenarioHash: q.Get("scenario_hash"),
		ScenarioName: q.Get("scenario"),
		Status:       q.Get("status"),
		Objective:    q.Get("objective"),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, invalidQuery("since", v)
		}
		filter.Since = &t
	}
	if *filter != (repository.ListFilter{}) {
		opts.Filter = filter
	}
	return opts, nil
}

func invalidQuery(name, value string) error {
	return apperror.Newf(apperror.CodeInvalidArgument, "invalid %s: %q", name, value).WithField(name)
}

// errorBody тело ответа с ошибкой
type errorBody struct {
	Error errorInfo `json:"error"`
}

type errorInfo struct {
	Code     apperror.ErrorCode `json:"code"`
	Message  string             `json:"message"`
	Field    string             `json:"field,omitempty"`
	Details  map[string]any     `json:"details,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)
	info := errorInfo{Code: apperror.Code(err), Message: err.Error()}

	var appErr *apperror.Error
	var verrs *apperror.ValidationErrors
	switch {
	case errors.As(err, &verrs) && len(verrs.Errors) > 0:
		first := verrs.Errors[0]
		info.Message = first.Message
		info.Field = first.Field
		if len(verrs.Errors) > 1 {
			info.Details = map[string]any{"errors": verrs.ErrorMessages()}
		}
		info.Warnings = verrs.WarningMessages()
	case errors.As(err, &appErr):
		info.Message = appErr.Message
		info.Field = appErr.Field
		if len(appErr.Details) > 0 {
			info.Details = appErr.Details
		}
	}

	// Внутренние подробности клиенту не отдаём
	if status >= http.StatusInternalServerError {
		logger.Log.Error("Request failed", "error", err, "code", info.Code)
		info.Details = nil
	}
	writeJSON(w, status, errorBody{Error: info})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Debug("Failed to write response", "error", err)
	}
}
