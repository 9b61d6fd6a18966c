package compiler

import (
	"energia/pkg/problem"
	"energia/pkg/scale"
)

// costConstraints агрегирует затраты снизу вверх: процесс -> площадка -> сеть.
// Каждое равенство задано на индексе сетевого уровня; потоки расписания
// входят суммой по вложенным индексам.
func (b *builder) costConstraints() {
	topo := b.topo
	for _, n := range b.net {
		sched := b.children(n, b.levels.Scheduling)

		capexNet := problem.NewExpr().Add(k(VarCapexNet, n), 1)
		fopexNet := problem.NewExpr().Add(k(VarFopexNet, n), 1)
		vopexNet := problem.NewExpr().Add(k(VarVopexNet, n), 1)
		bNet := problem.NewExpr().Add(k(VarBNet, n), 1)

		for _, l := range topo.Locations {
			capexLoc := problem.NewExpr().Add(k(VarCapexLoc, n, l), 1)
			fopexLoc := problem.NewExpr().Add(k(VarFopexLoc, n, l), 1)
			vopexLoc := problem.NewExpr().Add(k(VarVopexLoc, n, l), 1)

			for _, p := range topo.Processes {
				proc := topo.Process(p)
				capP := k(VarCapP, n, l, p)

				capex, fopex, vopex := k(VarCapexProc, n, l, p), k(VarFopexProc, n, l, p), k(VarVopexProc, n, l, p)
				b.constrain(FamCapexProcess, problem.NewExpr().Add(capex, 1).Add(capP, -proc.Capex), problem.EQ, 0, n, l, p)
				b.constrain(FamFopexProcess, problem.NewExpr().Add(fopex, 1).Add(capP, -proc.Fopex), problem.EQ, 0, n, l, p)

				ve := problem.NewExpr().Add(vopex, 1)
				for _, t := range sched {
					ve.Add(k(VarP, t, l, p), -proc.Vopex)
				}
				b.constrain(FamVopexProcess, ve, problem.EQ, 0, n, l, p)

				capexLoc.Add(capex, -1)
				fopexLoc.Add(fopex, -1)
				vopexLoc.Add(vopex, -1)
			}
			b.constrain(FamCapexLocation, capexLoc, problem.EQ, 0, n, l)
			b.constrain(FamFopexLocation, fopexLoc, problem.EQ, 0, n, l)
			b.constrain(FamVopexLocation, vopexLoc, problem.EQ, 0, n, l)

			bLoc := problem.NewExpr().Add(k(VarBLoc, n, l), 1)
			for _, t := range sched {
				for _, r := range topo.Resources {
					bLoc.Add(k(VarB, t, l, r), -1)
				}
			}
			b.constrain(FamBLocation, bLoc, problem.EQ, 0, n, l)

			capexNet.Add(k(VarCapexLoc, n, l), -1)
			fopexNet.Add(k(VarFopexLoc, n, l), -1)
			vopexNet.Add(k(VarVopexLoc, n, l), -1)
			bNet.Add(k(VarBLoc, n, l), -1)
		}
		b.constrain(FamCapexNetwork, capexNet, problem.EQ, 0, n)
		b.constrain(FamFopexNetwork, fopexNet, problem.EQ, 0, n)
		b.constrain(FamVopexNetwork, vopexNet, problem.EQ, 0, n)
		b.constrain(FamBNetwork, bNet, problem.EQ, 0, n)

		// сбыт и выручка сети
		revenue := problem.NewExpr().Add(k(VarRevenue, n), 1)
		for _, r := range topo.Resources {
			sNet := k(VarSNet, n, r)
			de := problem.NewExpr().Add(sNet, 1)
			for _, t := range sched {
				for _, l := range topo.Locations {
					de.Add(k(VarS, t, l, r), -1)
				}
			}
			b.constrain(FamDischargeNetwork, de, problem.EQ, 0, n, r)
			revenue.Add(sNet, -topo.Resource(r).Revenue)
		}
		b.constrain(FamRevenueNetwork, revenue, problem.EQ, 0, n)

		b.incidentalConstraint(n)
		b.inventoryCostConstraint(n, sched)
		if b.credit {
			b.creditConstraint(n, sched)
		}
	}
}

// incidentalConstraint: постоянные затраты процессов, размещённых в площадках.
// С семейством siting затраты возникают только при X_P = 1.
func (b *builder) incidentalConstraint(n scale.Index) {
	topo := b.topo
	e := problem.NewExpr().Add(k(VarIncid, n), 1)
	fixed := 0.0
	for _, l := range topo.Locations {
		for _, p := range topo.Processes {
			inc := topo.Process(p).Incidental
			if inc == 0 || !topo.HasProcess(l, p) {
				continue
			}
			if b.siting {
				e.Add(k(VarXP, n, l, p), -inc)
			} else {
				fixed += inc
			}
		}
	}
	b.constrain(FamIncidental, e, problem.EQ, fixed, n)
}

// inventoryCostConstraint: стоимость хранения запасов за сетевой период
func (b *builder) inventoryCostConstraint(n scale.Index, sched []scale.Index) {
	topo := b.topo
	e := problem.NewExpr().Add(k(VarInvCost, n), 1)
	for _, r := range topo.Storeable {
		c := topo.Resource(r).StorageCost
		for _, t := range sched {
			for _, l := range topo.Locations {
				e.Add(k(VarInv, t, l, r), -c)
			}
		}
	}
	b.constrain(FamInventoryCost, e, problem.EQ, 0, n)
}

// creditConstraint: кредит за производство, вычитается из затрат
func (b *builder) creditConstraint(n scale.Index, sched []scale.Index) {
	topo := b.topo
	e := problem.NewExpr().Add(k(VarCredit, n), 1)
	for _, p := range topo.Processes {
		c := topo.Process(p).Credit
		for _, t := range sched {
			for _, l := range topo.Locations {
				e.Add(k(VarP, t, l, p), -c)
			}
		}
	}
	b.constrain(FamCreditNetwork, e, problem.EQ, 0, n)
}

// landConstraints: занимаемая площадь, её предел и стоимость.
// Предел land_max задаётся только площадкам с LandMax > 0.
func (b *builder) landConstraints() {
	topo := b.topo
	for _, n := range b.net {
		cost := problem.NewExpr().Add(k(VarLandCost, n), 1)
		for _, l := range topo.Locations {
			loc := topo.Location(l)
			land := k(VarLand, n, l)
			use := problem.NewExpr().Add(land, 1)
			for _, p := range topo.Processes {
				use.Add(k(VarCapP, n, l, p), -topo.Process(p).Land)
			}
			b.constrain(FamLandUse, use, problem.EQ, 0, n, l)
			if loc.LandMax > 0 {
				b.constrain(FamLandMax, problem.NewExpr().Add(land, 1), problem.LE, loc.LandMax, n, l)
			}
			cost.Add(land, -loc.LandCost)
		}
		b.constrain(FamLandCost, cost, problem.EQ, 0, n)
	}
}

// materialConstraints: расход материалов на строительство мощностей.
func (b *builder) materialConstraints() {
	topo := b.topo
	for _, n := range b.net {
		cost := problem.NewExpr().Add(k(VarMatCost, n), 1)
		for _, l := range topo.Locations {
			for _, m := range topo.Materials {
				mat := k(VarMat, n, l, m)
				use := problem.NewExpr().Add(mat, 1)
				for _, p := range topo.WithMaterials {
					use.Add(k(VarCapP, n, l, p), -topo.Process(p).Materials[m])
				}
				b.constrain(FamMaterialUse, use, problem.EQ, 0, n, l, m)
				cost.Add(mat, -topo.Material(m).Price)
			}
		}
		b.constrain(FamMaterialCost, cost, problem.EQ, 0, n)
	}
}

// gwpConstraints: выбросы сети от мощностей, закупок и материалов.
func (b *builder) gwpConstraints() {
	topo := b.topo
	for _, n := range b.net {
		sched := b.children(n, b.levels.Scheduling)
		e := problem.NewExpr().Add(k(VarGWP, n), 1)
		for _, l := range topo.Locations {
			for _, p := range topo.Processes {
				e.Add(k(VarCapP, n, l, p), -topo.Process(p).GWP)
			}
			for _, r := range topo.Resources {
				gwp := topo.Resource(r).GWP
				for _, t := range sched {
					e.Add(k(VarC, t, l, r), -gwp)
				}
			}
			if b.material {
				for _, m := range topo.Materials {
					e.Add(k(VarMat, n, l, m), -topo.Material(m).GWP)
				}
			}
		}
		b.constrain(FamGWPNetwork, e, problem.EQ, 0, n)
	}
}

// totalCost сумма сетевых затрат по всем индексам сетевого уровня.
// Кредит входит со знаком минус.
func (b *builder) totalCost() *problem.Expr {
	e := problem.NewExpr()
	for _, n := range b.net {
		e.Add(k(VarCapexNet, n), 1)
		e.Add(k(VarFopexNet, n), 1)
		e.Add(k(VarVopexNet, n), 1)
		e.Add(k(VarBNet, n), 1)
		e.Add(k(VarIncid, n), 1)
		e.Add(k(VarInvCost, n), 1)
		if b.transport {
			e.Add(k(VarTransCost, n), 1)
			e.Add(k(VarCapexT, n), 1)
			e.Add(k(VarFopexT, n), 1)
		}
		if b.credit {
			e.Add(k(VarCredit, n), -1)
		}
		if b.land {
			e.Add(k(VarLandCost, n), 1)
		}
		if b.material {
			e.Add(k(VarMatCost, n), 1)
		}
	}
	return e
}
