package compiler

import (
	"energia/pkg/problem"
	"energia/pkg/scenario"
)

// balanceConstraints: mass_balance для каждой (площадка, ресурс, индекс).
//
//	Σ conv·P + C + Σ Imp − Σ Exp − S = Inv[t] − Inv[t-1]
//
// Для первого индекса расписания запас до начала горизонта равен нулю.
func (b *builder) balanceConstraints() {
	topo := b.topo
	for _, t := range b.sched {
		prev, hasPrev := b.h.Prev(t)
		for _, l := range topo.Locations {
			procs := topo.LocationProcesses(l)
			for _, r := range topo.Resources {
				e := problem.NewExpr()
				for _, p := range procs {
					proc := topo.Process(p)
					if modes, ok := topo.ProcessModes[p]; ok {
						for _, m := range modes {
							e.Add(k(VarPMode, t, l, p, m), recipeCoef(proc, m, r))
						}
						continue
					}
					e.Add(k(VarP, t, l, p), recipeCoef(proc, "", r))
				}
				e.Add(k(VarC, t, l, r), 1)
				e.Add(k(VarS, t, l, r), -1)
				e.Add(k(VarInv, t, l, r), -1)
				if hasPrev {
					e.Add(k(VarInv, prev, l, r), 1)
				}
				if b.transport && topo.ResourceCaps(r).Has(scenario.Transportable) {
					for _, pr := range b.pairs() {
						switch l {
						case pr.src:
							e.Add(k(VarExp, t, pr.src, pr.sink, r), -1)
						case pr.sink:
							e.Add(k(VarImp, t, pr.sink, pr.src, r), 1)
						}
					}
				}
				b.constrain(FamMassBalance, e, problem.EQ, 0, t, l, r)
			}
		}
	}
}

// resourceConstraints: пределы и стоимость закупки, допустимость сбыта.
func (b *builder) resourceConstraints() {
	topo := b.topo
	for _, t := range b.sched {
		for _, l := range topo.Locations {
			for _, r := range topo.Resources {
				res := topo.Resource(r)
				caps := topo.ResourceCaps(r)
				here := topo.HasResource(l, r)

				if caps.Has(scenario.Purchasable) && here {
					limit := res.ConsMax * b.f.availabilityFactor(l, r, t)
					b.constrain(FamPurchaseBound, problem.NewExpr().Add(k(VarC, t, l, r), 1), problem.LE, limit, t, l, r)
				} else {
					b.zero(FamPurchaseBound, k(VarC, t, l, r), t, l, r)
				}

				price := res.Price * b.f.priceFactor(l, r, t)
				b.constrain(FamPurchaseCost,
					problem.NewExpr().Add(k(VarB, t, l, r), 1).Add(k(VarC, t, l, r), -price),
					problem.EQ, 0, t, l, r)

				if !sellable(caps) || !here {
					b.zero(FamDischargeBound, k(VarS, t, l, r), t, l, r)
				}
			}
		}
	}
}

// storageConstraints: ёмкость хранения равна сумме мощностей накопителей
// площадки, запас ограничен ёмкостью; нехранимые ресурсы не запасаются.
func (b *builder) storageConstraints() {
	topo := b.topo
	for _, n := range b.net {
		for _, l := range topo.Locations {
			for _, r := range topo.Storeable {
				e := problem.NewExpr().Add(k(VarCapS, n, l, r), 1)
				for _, p := range topo.StorageProcesses(l, r) {
					e.Add(k(VarCapP, n, l, p), -1)
				}
				b.constrain(FamStorageCapacity, e, problem.EQ, 0, n, l, r)
			}
		}
	}

	for _, t := range b.sched {
		n := b.up(t, b.levels.Network)
		for _, l := range topo.Locations {
			for _, r := range topo.Resources {
				inv := k(VarInv, t, l, r)
				if !topo.ResourceCaps(r).Has(scenario.Storeable) {
					b.zero(FamNameplateInv, inv, t, l, r)
					continue
				}
				b.constrain(FamNameplateInv,
					problem.NewExpr().Add(inv, 1).Add(k(VarCapS, n, l, r), -1),
					problem.LE, 0, t, l, r)
			}
		}
	}
}
