package compiler

import (
	"slices"

	"energia/pkg/problem"
)

// transportConstraints сохраняет поток по каждой направленной паре:
// экспорт источника равен импорту стока, каждый вид транспорта ограничен
// своей пропускной способностью или зафиксирован в нуле, если недоступен.
func (b *builder) transportConstraints() {
	topo := b.topo
	pairs := b.pairs()

	for _, t := range b.sched {
		for _, pr := range pairs {
			for _, r := range topo.Transportable {
				exp := k(VarExp, t, pr.src, pr.sink, r)
				imp := k(VarImp, t, pr.sink, pr.src, r)

				export := problem.NewExpr().Add(exp, 1)
				imports := problem.NewExpr().Add(imp, 1)
				for _, tr := range topo.Transports {
					te := k(VarTransExp, t, pr.src, pr.sink, r, tr)
					ti := k(VarTransImp, t, pr.sink, pr.src, r, tr)
					if !topo.TransportAvailable(pr.src, pr.sink, tr, r) {
						b.zero(FamTransportExpUB, te, t, pr.src, pr.sink, r, tr)
						b.zero(FamTransportImpUB, ti, t, pr.sink, pr.src, r, tr)
						continue
					}
					limit := topo.Transport(tr).TransMax
					b.constrain(FamTransportExpUB, problem.NewExpr().Add(te, 1), problem.LE, limit, t, pr.src, pr.sink, r, tr)
					b.constrain(FamTransportImpUB, problem.NewExpr().Add(ti, 1), problem.LE, limit, t, pr.sink, pr.src, r, tr)
					export.Add(te, -1)
					imports.Add(ti, -1)
				}
				b.constrain(FamTransportExport, export, problem.EQ, 0, t, pr.src, pr.sink, r)
				b.constrain(FamTransportImport, imports, problem.EQ, 0, t, pr.sink, pr.src, r)
				b.constrain(FamTransportBalance,
					problem.NewExpr().Add(imp, 1).Add(exp, -1),
					problem.EQ, 0, t, pr.sink, pr.src, r)
			}
		}
	}

	// transport_cost: стоимость перевозки за сетевой период
	for _, n := range b.net {
		e := problem.NewExpr().Add(k(VarTransCost, n), 1)
		for _, t := range b.children(n, b.levels.Scheduling) {
			for _, pr := range pairs {
				dist := topo.Distance(pr.src, pr.sink)
				for _, r := range topo.Transportable {
					for _, tr := range topo.TransportModes(pr.src, pr.sink) {
						if !topo.TransportAvailable(pr.src, pr.sink, tr, r) {
							continue
						}
						e.Add(k(VarTransExp, t, pr.src, pr.sink, r, tr), -topo.Transport(tr).TransCost*dist)
					}
				}
			}
		}
		b.constrain(FamTransportCost, e, problem.EQ, 0, n)
	}

	b.transportCapacity(pairs)
}

// transportCapacity: пропускная способность вида транспорта на паре не меньше
// суммарного экспорта любого шага расписания и не больше TransMax. Capex и
// Fopex начисляются на мощность, умноженную на расстояние.
func (b *builder) transportCapacity(pairs []pair) {
	topo := b.topo
	for _, n := range b.net {
		capex := problem.NewExpr().Add(k(VarCapexT, n), 1)
		fopex := problem.NewExpr().Add(k(VarFopexT, n), 1)
		sched := b.children(n, b.levels.Scheduling)

		for _, pr := range pairs {
			dist := topo.Distance(pr.src, pr.sink)
			for _, tr := range topo.Transports {
				capT := k(VarCapT, n, pr.src, pr.sink, tr)
				if !slices.Contains(topo.TransportModes(pr.src, pr.sink), tr) {
					b.zero(FamTransportCapMax, capT, n, pr.src, pr.sink, tr)
					continue
				}
				spec := topo.Transport(tr)
				b.constrain(FamTransportCapMax, problem.NewExpr().Add(capT, 1), problem.LE, spec.TransMax, n, pr.src, pr.sink, tr)

				for _, t := range sched {
					e := problem.NewExpr().Add(capT, 1)
					for _, r := range topo.Transportable {
						if topo.TransportAvailable(pr.src, pr.sink, tr, r) {
							e.Add(k(VarTransExp, t, pr.src, pr.sink, r, tr), -1)
						}
					}
					b.constrain(FamTransportCap, e, problem.GE, 0, t, pr.src, pr.sink, tr)
				}
				capex.Add(capT, -spec.Capex*dist)
				fopex.Add(capT, -spec.Fopex*dist)
			}
		}
		b.constrain(FamCapexTransport, capex, problem.EQ, 0, n)
		b.constrain(FamFopexTransport, fopex, problem.EQ, 0, n)
	}
}
