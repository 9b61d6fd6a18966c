package compiler

import (
	"energia/pkg/problem"
	"energia/pkg/scale"
	"energia/pkg/scenario"
)

// demandSign знак спроса: переопределение компилятора или значение сценария
func (b *builder) demandSign() scenario.DemandSign {
	if b.opts.DemandSign != "" {
		return b.opts.DemandSign
	}
	return b.s.DemandSignOrDefault()
}

func senseOf(sign scenario.DemandSign) problem.Sense {
	switch sign {
	case scenario.DemandLEQ:
		return problem.LE
	case scenario.DemandEQ:
		return problem.EQ
	default:
		return problem.GE
	}
}

// discharge добавляет в e сбыт ресурса за все индексы расписания под d
func (b *builder) discharge(e *problem.Expr, d scale.Index, location, resource string) {
	for _, t := range b.children(d, b.levels.Scheduling) {
		e.Add(k(VarS, t, location, resource), 1)
	}
}

// target величина спроса на индексе уровня спроса
func (b *builder) target(dm demandEntry, d scale.Index) float64 {
	return dm.amount * b.f.demandFactor(dm.location, dm.resource, d)
}

// demandConstraints выбирает форму спроса по цели:
// жёсткий спрос, спрос со штрафом недопоставки или агрегированный спрос
// со слабиной на уровне неопределённости. Штрафная форма сохраняет знак
// спроса: S + Demand_penalty (знак) цель.
func (b *builder) demandConstraints() {
	switch b.objective {
	case scenario.ObjectiveCostWDemandPenalty, scenario.ObjectiveProfitWDemandPenalty:
		sense := senseOf(b.demandSign())
		for _, d := range b.dem {
			for _, dm := range b.demands {
				e := problem.NewExpr().Add(k(VarPenalty, d, dm.location, dm.resource), 1)
				b.discharge(e, d, dm.location, dm.resource)
				b.constrain(FamDemandPenalty, e, sense, b.target(dm, d), d, dm.location, dm.resource)
			}
		}

	case scenario.ObjectiveUncertaintyCost:
		for _, u := range b.unc {
			for _, l := range b.demandLocations() {
				e := problem.NewExpr().Add(k(VarSlack, u, l), 1)
				total := 0.0
				for _, d := range b.children(u, b.levels.Demand) {
					for _, dm := range b.demands {
						if dm.location != l {
							continue
						}
						b.discharge(e, d, l, dm.resource)
						total += b.target(dm, d)
					}
				}
				b.constrain(FamDemandSlack, e, problem.GE, total, u, l)
			}
		}

	default:
		sense := senseOf(b.demandSign())
		for _, d := range b.dem {
			for _, dm := range b.demands {
				e := problem.NewExpr()
				b.discharge(e, d, dm.location, dm.resource)
				b.constrain(FamDemand, e, sense, b.target(dm, d), d, dm.location, dm.resource)
			}
		}
	}
}
