package compiler

import (
	"energia/pkg/apperror"
	"energia/pkg/logger"
	"energia/pkg/problem"
	"energia/pkg/scenario"
)

// penalty вес Demand_slack: переопределение компилятора или значение сценария
func (b *builder) penalty() float64 {
	if b.opts.Penalty > 0 {
		return b.opts.Penalty
	}
	return b.s.Penalty
}

// objectiveStage собирает целевую функцию. Все термы разрешаются через
// задачу, поэтому ссылка на необъявленную переменную даёт
// UNDECLARED_VARIABLE_REFERENCE.
func (b *builder) objectiveStage() error {
	var (
		e        *problem.Expr
		maximize bool
	)

	switch b.objective {
	case scenario.ObjectiveCost:
		e = b.totalCost()

	case scenario.ObjectiveCostWDemandPenalty:
		e = b.totalCost()
		b.addPenalty(e, 1)

	case scenario.ObjectiveUncertaintyCost:
		w := b.penalty()
		if w <= 0 {
			return apperror.NewWithField(apperror.CodeInvalidObjective,
				"uncertainty_cost needs a positive penalty", "penalty")
		}
		e = b.totalCost()
		for _, u := range b.unc {
			for _, l := range b.demandLocations() {
				e.Add(k(VarSlack, u, l), w)
			}
		}

	case scenario.ObjectiveDischargeMin, scenario.ObjectiveDischargeMax:
		r := b.s.ObjectiveResource
		if b.topo.Resource(r) == nil {
			return apperror.Newf(apperror.CodeInvalidObjective,
				"objective resource %q is not declared", r).WithField("objective_resource")
		}
		e = problem.NewExpr()
		for _, n := range b.net {
			e.Add(k(VarSNet, n, r), 1)
		}
		maximize = b.objective == scenario.ObjectiveDischargeMax

	case scenario.ObjectiveProfit:
		e = problem.NewExpr()
		for _, n := range b.net {
			e.Add(k(VarRevenue, n), 1)
		}
		e.AddExpr(b.totalCost(), -1)
		maximize = true

	case scenario.ObjectiveProfitWDemandPenalty:
		e = problem.NewExpr()
		for _, n := range b.net {
			e.Add(k(VarRevenue, n), 1)
		}
		e.AddExpr(b.totalCost(), -1)
		b.addPenalty(e, -1)
		maximize = true

	case scenario.ObjectiveGWPMin:
		e = problem.NewExpr()
		for _, n := range b.net {
			e.Add(k(VarGWP, n), 1)
		}

	default:
		return apperror.Newf(apperror.CodeInvalidObjective, "unknown objective %q", b.objective).
			WithField("objective")
	}

	if err := b.p.SetObjective(e, maximize); err != nil {
		return err
	}
	logger.Log.Debug("Objective assembled",
		"objective", b.objective,
		"maximize", maximize,
		"terms", e.Len(),
	)
	return nil
}

// addPenalty добавляет sign·штраф·Demand_penalty по всем спросам
func (b *builder) addPenalty(e *problem.Expr, sign float64) {
	for _, d := range b.dem {
		for _, dm := range b.demands {
			e.Add(k(VarPenalty, d, dm.location, dm.resource), sign*dm.penalty)
		}
	}
}
