package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Сценарий
	AttrScenarioName      = "scenario.name"
	AttrScenarioLocations = "scenario.locations"
	AttrScenarioProcesses = "scenario.processes"
	AttrScenarioObjective = "scenario.objective"

	// Задача
	AttrProblemVariables   = "problem.variables"
	AttrProblemBinaries    = "problem.binaries"
	AttrProblemConstraints = "problem.constraints"
	AttrCompileStage       = "compile.stage"

	// Решение
	AttrSolverName      = "solver.name"
	AttrSolverStatus    = "solver.status"
	AttrSolverNodes     = "solver.nodes"
	AttrSolverObjective = "solver.objective"

	// Кэш
	AttrCacheHit = "cache.hit"
)

// ScenarioAttributes возвращает атрибуты сценария
func ScenarioAttributes(name, objective string, locations, processes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrScenarioName, name),
		attribute.String(AttrScenarioObjective, objective),
		attribute.Int(AttrScenarioLocations, locations),
		attribute.Int(AttrScenarioProcesses, processes),
	}
}

// ProblemAttributes возвращает атрибуты скомпилированной задачи
func ProblemAttributes(variables, binaries, constraints int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrProblemVariables, variables),
		attribute.Int(AttrProblemBinaries, binaries),
		attribute.Int(AttrProblemConstraints, constraints),
	}
}

// SolveAttributes возвращает атрибуты решения
func SolveAttributes(solver, status string, nodes int, objective float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSolverName, solver),
		attribute.String(AttrSolverStatus, status),
		attribute.Int(AttrSolverNodes, nodes),
		attribute.Float64(AttrSolverObjective, objective),
	}
}
