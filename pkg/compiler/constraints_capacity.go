package compiler

import (
	"energia/pkg/problem"
)

// capacityConstraints связывает расписание с мощностями и ограничивает
// мощности процессов.
func (b *builder) capacityConstraints() {
	topo := b.topo

	// nameplate_production: P[t] <= factor·(1 − FailureRate)·Cap_P[truncate(t)]
	for _, t := range b.sched {
		n := b.up(t, b.levels.Network)
		for _, l := range topo.Locations {
			for _, p := range topo.Processes {
				prod := k(VarP, t, l, p)
				if !topo.HasProcess(l, p) {
					b.zero(FamNameplate, prod, t, l, p)
					continue
				}
				proc := topo.Process(p)
				avail := b.f.capacityFactor(topo, l, p, t) * (1 - proc.FailureRate)
				b.constrain(FamNameplate,
					problem.NewExpr().Add(prod, 1).Add(k(VarCapP, n, l, p), -avail),
					problem.LE, 0, t, l, p)
			}
		}
	}

	for _, n := range b.net {
		for _, l := range topo.Locations {
			loc := topo.Location(l)
			for _, p := range topo.Processes {
				capP := k(VarCapP, n, l, p)
				if !topo.HasProcess(l, p) {
					b.zero(FamProductionMax, capP, n, l, p)
					b.zero(FamProductionMin, capP, n, l, p)
					if b.siting {
						b.zero(FamFacilityFix, k(VarXP, n, l, p), n, l, p)
					}
					continue
				}
				proc := topo.Process(p)

				b.constrain(FamProductionMax, problem.NewExpr().Add(capP, 1), problem.LE, proc.ProdMax, n, l, p)

				if b.siting {
					// мощность только на выбранной площадке
					x := k(VarXP, n, l, p)
					b.constrain(FamFacilityFix,
						problem.NewExpr().Add(capP, 1).Add(x, -b.opts.BigM),
						problem.LE, 0, n, l, p)
					b.constrain(FamProductionMin,
						problem.NewExpr().Add(capP, 1).Add(x, -proc.ProdMin),
						problem.GE, 0, n, l, p)
				} else {
					b.constrain(FamProductionMin, problem.NewExpr().Add(capP, 1), problem.GE, proc.ProdMin, n, l, p)
				}

				if fixed, ok := loc.FixedCapacity[p]; ok {
					b.constrain(FamFacilityAffix, problem.NewExpr().Add(capP, 1), problem.EQ, fixed, n, l, p)
				}
			}
		}
	}
}

// modeConstraints: производство многорежимного процесса делится между
// режимами, в каждый момент активен не более чем один режим.
func (b *builder) modeConstraints() {
	topo := b.topo
	for _, t := range b.sched {
		for _, l := range topo.Locations {
			for _, p := range topo.MultiMode {
				modes := topo.ProcessModes[p]

				split := problem.NewExpr().Add(k(VarP, t, l, p), 1)
				exclusive := problem.NewExpr()
				for _, m := range modes {
					pm, x := k(VarPMode, t, l, p, m), k(VarXMode, t, l, p, m)
					split.Add(pm, -1)
					exclusive.Add(x, 1)
					b.constrain(FamModeBound,
						problem.NewExpr().Add(pm, 1).Add(x, -b.opts.BigM),
						problem.LE, 0, t, l, p, m)
				}
				b.constrain(FamModeSplit, split, problem.EQ, 0, t, l, p)

				if topo.HasProcess(l, p) {
					b.constrain(FamModeExclusive, exclusive, problem.LE, 1, t, l, p)
				} else {
					b.constrain(FamModeExclusive, exclusive, problem.EQ, 0, t, l, p)
				}
			}
		}
	}
}
