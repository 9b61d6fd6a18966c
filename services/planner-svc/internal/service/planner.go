// Package service реализует операции planner-svc: компиляцию сценария,
// решение с кэшированием и историей запусков, экспорт модели и отчёты.
package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"energia/pkg/apperror"
	"energia/pkg/cache"
	"energia/pkg/compiler"
	"energia/pkg/config"
	"energia/pkg/logger"
	"energia/pkg/metrics"
	"energia/pkg/problem"
	"energia/pkg/scenario"
	"energia/pkg/solver"
	"energia/pkg/telemetry"
	"energia/services/planner-svc/internal/report"
	"energia/services/planner-svc/internal/repository"
)

// DefaultValueTolerance значения по модулю не больше порога не сохраняются
const DefaultValueTolerance = 1e-6

// Options параметры планировщика
type Options struct {
	Compiler       compiler.Options
	Solver         solver.Options
	ValueTolerance float64
	CacheTTL       time.Duration
	Report         config.ReportConfig
}

// OptionsFromConfig собирает параметры из конфигурации сервиса
func OptionsFromConfig(cfg *config.Config) Options {
	copts := compiler.DefaultOptions()
	if cfg.Compiler.BigM > 0 {
		copts.BigM = cfg.Compiler.BigM
	}
	copts.Penalty = cfg.Compiler.Penalty
	copts.DemandSign = scenario.DemandSign(cfg.Compiler.DemandSign)

	sopts := solver.DefaultOptions()
	if cfg.Solver.Tolerance > 0 {
		sopts.Tolerance = cfg.Solver.Tolerance
	}
	if cfg.Solver.MaxNodes > 0 {
		sopts.MaxNodes = cfg.Solver.MaxNodes
	}
	if cfg.Solver.Timeout > 0 {
		sopts.Timeout = cfg.Solver.Timeout
	}
	sopts.Relax = cfg.Solver.RelaxIntegrality

	tol := cfg.Report.Tolerance
	if tol <= 0 {
		tol = DefaultValueTolerance
	}

	return Options{
		Compiler:       copts,
		Solver:         *sopts,
		ValueTolerance: tol,
		CacheTTL:       cfg.Cache.DefaultTTL,
		Report:         cfg.Report,
	}
}

// SolveOverrides параметры решателя для одного запроса
type SolveOverrides struct {
	Relax    *bool
	MaxNodes *int
	Timeout  *time.Duration
	// NoCache пропускает чтение кэша; результат всё равно кэшируется
	NoCache bool
}

// CompileResult сводка скомпилированной задачи
type CompileResult struct {
	Scenario     string             `json:"scenario"`
	ScenarioHash string             `json:"scenario_hash"`
	Objective    scenario.Objective `json:"objective"`
	Stats        problem.Stats      `json:"stats"`
	DurationMs   float64            `json:"duration_ms"`
}

// Planner сервис планирования
type Planner struct {
	compiler *compiler.Compiler
	opts     Options
	plans    *cache.PlanCache
	runs     repository.RunRepository
	reports  *report.Generator
	metrics  *metrics.Metrics
}

// New создаёт сервис. plans может быть nil, если кэш выключен.
func New(opts Options, runs repository.RunRepository, plans *cache.PlanCache) *Planner {
	if opts.ValueTolerance <= 0 {
		opts.ValueTolerance = DefaultValueTolerance
	}
	return &Planner{
		compiler: compiler.New(opts.Compiler),
		opts:     opts,
		plans:    plans,
		runs:     runs,
		reports:  report.NewGenerator(opts.Report),
		metrics:  metrics.Get(),
	}
}

// Compile компилирует сценарий и возвращает размер задачи
func (p *Planner) Compile(ctx context.Context, s *scenario.Scenario) (*CompileResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Planner.Compile")
	defer span.End()

	hash, err := cache.ScenarioHash(s)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "failed to hash scenario")
	}
	comp, err := p.compiler.Compile(ctx, s)
	if err != nil {
		return nil, err
	}

	return &CompileResult{
		Scenario:     s.Name,
		ScenarioHash: hash,
		Objective:    comp.Objective,
		Stats:        comp.Problem.Stats(),
		DurationMs:   millis(comp.Duration),
	}, nil
}

// ExportLP компилирует сценарий и пишет задачу в формате CPLEX LP
func (p *Planner) ExportLP(ctx context.Context, s *scenario.Scenario, w io.Writer) error {
	ctx, span := telemetry.StartSpan(ctx, "Planner.ExportLP")
	defer span.End()

	comp, err := p.compiler.Compile(ctx, s)
	if err != nil {
		return err
	}
	if err := solver.WriteLP(w, comp.Problem.Matrix()); err != nil {
		telemetry.SetError(ctx, err)
		return apperror.Wrap(err, apperror.CodeInternal, "failed to write LP")
	}
	return nil
}

// Solve решает сценарий. Результат ищется в кэше по хешу сценария и
// параметрам; каждый вызов сохраняется как запуск. Недопустимая или
// неограниченная задача возвращается запуском с соответствующим статусом.
func (p *Planner) Solve(ctx context.Context, s *scenario.Scenario, ov SolveOverrides) (*repository.Run, error) {
	if s == nil {
		return nil, apperror.ErrNilScenario
	}
	ctx, span := telemetry.StartSpan(ctx, "Planner.Solve",
		telemetry.WithAttributes(telemetry.ScenarioAttributes(
			s.Name, string(s.ObjectiveOrDefault()), len(s.Locations), len(s.Processes))...),
	)
	defer span.End()

	hash, err := cache.ScenarioHash(s)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "failed to hash scenario")
	}
	sopts := p.solverOptions(ov)
	optsHash := p.optionsHash(sopts)

	if p.plans != nil && !ov.NoCache {
		plan, found, err := p.plans.Get(ctx, hash, optsHash)
		if err != nil {
			logger.Log.Warn("Plan cache lookup failed", "error", err)
		}
		if found {
			span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
			run := runFromPlan(s, hash, plan)
			p.persist(ctx, run)
			return run, nil
		}
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	comp, err := p.compiler.Compile(ctx, s)
	if err != nil {
		return nil, err
	}

	slv := solver.New(&sopts)
	sol, err := comp.Problem.Solve(ctx, slv)
	if sol != nil {
		p.metrics.RecordSolveOperation(sol.Solver, string(sol.Status), sol.Duration, sol.Nodes)
	}
	if err != nil {
		telemetry.SetError(ctx, err)
		logger.Log.Error("Solve failed",
			"scenario", s.Name,
			"code", apperror.Code(err),
			"error", err,
		)
		return nil, err
	}
	telemetry.SetAttributes(ctx, telemetry.SolveAttributes(sol.Solver, string(sol.Status), sol.Nodes, sol.Objective)...)

	if sol.Status.HasValues() {
		p.metrics.RecordObjective(string(comp.Objective), sol.Objective)
	}

	if p.plans != nil {
		if err := p.plans.SetFromSolution(ctx, hash, optsHash, comp.Problem, sol, p.opts.ValueTolerance, p.opts.CacheTTL); err != nil {
			logger.Log.Warn("Failed to cache plan", "scenario", s.Name, "error", err)
		}
	}

	run := runFromSolution(s, hash, comp, sol, p.opts.ValueTolerance)
	p.persist(ctx, run)

	logger.Log.Info("Scenario solved",
		"scenario", s.Name,
		"run_id", run.ID,
		"status", sol.Status,
		"objective", sol.Objective,
		"nodes", sol.Nodes,
		"duration", sol.Duration,
	)
	return run, nil
}

// persist сохраняет запуск; ошибка хранилища не отменяет результат
func (p *Planner) persist(ctx context.Context, run *repository.Run) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Create(ctx, run); err != nil {
		logger.Log.Error("Failed to save run", "scenario", run.ScenarioName, "error", err)
	}
}

func (p *Planner) solverOptions(ov SolveOverrides) solver.Options {
	o := p.opts.Solver
	if ov.Relax != nil {
		o.Relax = *ov.Relax
	}
	if ov.MaxNodes != nil {
		o.MaxNodes = *ov.MaxNodes
	}
	if ov.Timeout != nil {
		o.Timeout = *ov.Timeout
	}
	return o
}

// optionsHash ключ параметров, влияющих на результат. Timeout не входит:
// он меняет только то, успеет ли решатель.
func (p *Planner) optionsHash(o solver.Options) string {
	data, _ := json.Marshal(struct {
		BigM       float64
		Penalty    float64
		DemandSign scenario.DemandSign
		Tolerance  float64
		MaxNodes   int
		Relax      bool
	}{
		BigM:       p.opts.Compiler.BigM,
		Penalty:    p.opts.Compiler.Penalty,
		DemandSign: p.opts.Compiler.DemandSign,
		Tolerance:  o.Tolerance,
		MaxNodes:   o.MaxNodes,
		Relax:      o.Relax,
	})
	return cache.ShortHash(data)
}

// ListRuns возвращает страницу истории запусков
func (p *Planner) ListRuns(ctx context.Context, opts *repository.ListOptions) ([]*repository.Run, int64, error) {
	if opts != nil && (opts.Limit < 0 || opts.Offset < 0) {
		return nil, 0, apperror.New(apperror.CodeInvalidPagination, "limit and offset must not be negative")
	}
	runs, total, err := p.runs.List(ctx, opts)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.CodeInternal, "failed to list runs")
	}
	return runs, total, nil
}

// GetRun возвращает запуск со значениями переменных
func (p *Planner) GetRun(ctx context.Context, id string) (*repository.Run, error) {
	run, err := p.runs.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}
	return run, nil
}

// DeleteRun удаляет запуск
func (p *Planner) DeleteRun(ctx context.Context, id string) error {
	if err := p.runs.Delete(ctx, id); err != nil {
		return mapRepoError(err, id)
	}
	return nil
}

// Report готовый отчёт
type Report struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Report строит отчёт по запуску в формате xlsx или pdf
func (p *Planner) Report(ctx context.Context, id, format string) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "Planner.Report")
	defer span.End()

	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	run, err := p.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := p.reports.Generate(run, f)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to generate report")
	}
	return &Report{
		Data:        data,
		ContentType: f.ContentType(),
		Filename:    "run-" + run.ID + "." + string(f),
	}, nil
}

// Ping проверяет хранилище запусков
func (p *Planner) Ping(ctx context.Context) error {
	return p.runs.Ping(ctx)
}

func mapRepoError(err error, id string) error {
	if errors.Is(err, repository.ErrRunNotFound) {
		return apperror.Newf(apperror.CodeNotFound, "run %s not found", id).WithField("id")
	}
	return apperror.Wrap(err, apperror.CodeInternal, "run storage failed")
}

func runFromSolution(s *scenario.Scenario, hash string, comp *compiler.Compilation, sol *problem.Solution, tol float64) *repository.Run {
	stats := comp.Problem.Stats()
	run := &repository.Run{
		ScenarioName: s.Name,
		ScenarioHash: hash,
		Objective:    string(comp.Objective),
		Status:       string(sol.Status),
		Solver:       sol.Solver,
		Nodes:        sol.Nodes,
		Message:      sol.Message,
		Variables:    stats.Variables,
		Binaries:     stats.Binaries,
		Constraints:  stats.Constraints,
		CompileMs:    millis(comp.Duration),
		SolveMs:      millis(sol.Duration),
	}
	if sol.Status.HasValues() {
		obj := sol.Objective
		run.ObjectiveValue = &obj
	}
	for _, a := range sol.Assignments(tol) {
		run.Values = append(run.Values, repository.Value{
			Category: a.Key.Category,
			Key:      a.Key.String(),
			Value:    a.Value,
		})
	}
	sortValues(run.Values)
	return run
}

func runFromPlan(s *scenario.Scenario, hash string, plan *cache.CachedPlan) *repository.Run {
	run := &repository.Run{
		ScenarioName: s.Name,
		ScenarioHash: hash,
		Objective:    string(s.ObjectiveOrDefault()),
		Status:       plan.Status,
		Solver:       plan.Solver,
		Nodes:        plan.Nodes,
		Message:      plan.Message,
		Variables:    plan.Stats.Variables,
		Binaries:     plan.Stats.Binaries,
		Constraints:  plan.Stats.Constraints,
		SolveMs:      plan.DurationMs,
		Cached:       true,
	}
	if problem.Status(plan.Status).HasValues() {
		obj := plan.Objective
		run.ObjectiveValue = &obj
	}
	run.Values = make([]repository.Value, 0, len(plan.Values))
	for key, v := range plan.Values {
		run.Values = append(run.Values, repository.Value{Category: categoryOf(key), Key: key, Value: v})
	}
	sortValues(run.Values)
	return run
}

// categoryOf извлекает категорию из строки ключа вида "P[site,plant](0)"
func categoryOf(key string) string {
	if i := strings.IndexAny(key, "[("); i >= 0 {
		return key[:i]
	}
	return key
}

func sortValues(values []repository.Value) {
	slices.SortFunc(values, func(a, b repository.Value) int {
		if c := cmp.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
