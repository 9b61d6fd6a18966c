// Package compiler переводит сценарий энергосети в линейную (смешанно-целочисленную)
// задачу: строит иерархию шкалы, топологию и нормализованные факторы, затем
// объявляет переменные, генерирует семейства ограничений и собирает цель.
//
// Стадии выполняются последовательно, каждая читает только неизменяемые
// результаты предыдущих. Ошибка любой стадии прерывает компиляцию, частично
// собранная задача не возвращается.
package compiler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"energia/pkg/apperror"
	"energia/pkg/logger"
	"energia/pkg/metrics"
	"energia/pkg/problem"
	"energia/pkg/scale"
	"energia/pkg/scenario"
	"energia/pkg/telemetry"
	"energia/pkg/topology"
)

// Стадии компиляции, используются в метриках и спанах
const (
	StageValidate    = "validate"
	StageHierarchy   = "hierarchy"
	StageTopology    = "topology"
	StageFactors     = "factors"
	StageVariables   = "variables"
	StageConstraints = "constraints"
	StageObjective   = "objective"
)

// DefaultBigM значение M для ограничений размещения и режимов по умолчанию
const DefaultBigM = 1e4

// Options параметры компилятора
type Options struct {
	// BigM константа для facility_fix и mode_bound. Должна превышать любую
	// допустимую мощность, иначе релаксация отсекает допустимые решения.
	BigM float64
	// Penalty переопределяет вес Demand_slack сценария, если > 0
	Penalty float64
	// DemandSign переопределяет знак спроса сценария, если задан
	DemandSign scenario.DemandSign
}

// DefaultOptions параметры по умолчанию
func DefaultOptions() Options {
	return Options{BigM: DefaultBigM}
}

// Validate проверяет параметры
func (o Options) Validate() error {
	errs := apperror.NewValidationErrors()
	if o.BigM <= 0 {
		errs.AddErrorWithField(apperror.CodeInvalidArgument, "big-M must be positive", "big_m")
	}
	if o.Penalty < 0 {
		errs.AddErrorWithField(apperror.CodeInvalidArgument, "penalty must not be negative", "penalty")
	}
	switch o.DemandSign {
	case "", scenario.DemandGEQ, scenario.DemandLEQ, scenario.DemandEQ:
	default:
		errs.AddErrorWithField(apperror.CodeInvalidArgument, "unknown demand sign "+string(o.DemandSign), "demand_sign")
	}
	return errs.ErrOrNil()
}

// Compiler компилятор сценариев. Не хранит состояния между вызовами,
// поэтому безопасен для конкурентного использования.
type Compiler struct {
	opts Options
}

// New создаёт компилятор
func New(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Options возвращает параметры компилятора
func (c *Compiler) Options() Options {
	return c.opts
}

// Compilation результат компиляции
type Compilation struct {
	Problem   *problem.Problem
	Hierarchy *scale.Hierarchy
	Topology  *topology.Topology
	Objective scenario.Objective
	Duration  time.Duration
}

// Compile компилирует сценарий в запечатанную задачу
func (c *Compiler) Compile(ctx context.Context, s *scenario.Scenario) (*Compilation, error) {
	if s == nil {
		return nil, apperror.ErrNilScenario
	}
	objective := s.ObjectiveOrDefault()

	ctx, span := telemetry.StartSpan(ctx, "Compiler.Compile",
		telemetry.WithAttributes(telemetry.ScenarioAttributes(
			s.Name, string(objective), len(s.Locations), len(s.Processes))...),
	)
	defer span.End()

	start := time.Now()
	m := metrics.Get()

	if err := c.opts.Validate(); err != nil {
		telemetry.SetError(ctx, err)
		m.RecordCompile(string(objective), false, 0, 0)
		return nil, err
	}

	b := &builder{s: s, opts: c.opts, objective: objective}
	stages := []struct {
		name string
		run  func() error
	}{
		{StageValidate, b.validate},
		{StageHierarchy, b.hierarchy},
		{StageTopology, b.topology},
		{StageFactors, b.factors},
		{StageVariables, b.variables},
		{StageConstraints, b.constraints},
		{StageObjective, b.objectiveStage},
	}
	for _, st := range stages {
		if err := c.stage(ctx, st.name, st.run); err != nil {
			telemetry.SetError(ctx, err)
			m.RecordCompile(string(objective), false, 0, 0)
			logger.Log.Warn("Compilation failed",
				"scenario", s.Name,
				"stage", st.name,
				"code", apperror.Code(err),
				"error", err,
			)
			return nil, err
		}
	}
	b.p.Seal()

	stats := b.p.Stats()
	telemetry.SetAttributes(ctx, telemetry.ProblemAttributes(stats.Variables, stats.Binaries, stats.Constraints)...)
	m.RecordCompile(string(objective), true, stats.Variables, stats.Constraints)

	duration := time.Since(start)
	logger.Log.Info("Scenario compiled",
		"scenario", s.Name,
		"objective", objective,
		"variables", stats.Variables,
		"binaries", stats.Binaries,
		"constraints", stats.Constraints,
		"duration", duration,
	)

	return &Compilation{
		Problem:   b.p,
		Hierarchy: b.h,
		Topology:  b.topo,
		Objective: objective,
		Duration:  duration,
	}, nil
}

func (c *Compiler) stage(ctx context.Context, name string, run func() error) error {
	ctx, span := telemetry.StartSpan(ctx, "Compiler."+name,
		telemetry.WithAttributes(attribute.String(telemetry.AttrCompileStage, name)),
	)
	defer span.End()

	stop := metrics.StartTimer(metrics.Get().CompileStageDuration, name)
	err := run()
	d := stop()
	if err != nil {
		telemetry.SetError(ctx, err)
		return err
	}
	logger.Log.Debug("Compile stage finished", "stage", name, "duration", d)
	return nil
}

// Compile компилирует сценарий с параметрами по умолчанию
func Compile(ctx context.Context, s *scenario.Scenario) (*Compilation, error) {
	return New(DefaultOptions()).Compile(ctx, s)
}
