package compiler

import (
	"energia/pkg/logger"
	"energia/pkg/problem"
	"energia/pkg/scale"
	"energia/pkg/scenario"
)

// pair направленная пара площадок сети
type pair struct {
	src, sink string
}

// pairs все упорядоченные пары источник -> сток различных площадок
func (b *builder) pairs() []pair {
	var out []pair
	for _, src := range b.topo.Sources {
		for _, sink := range b.topo.Sinks {
			if src != sink {
				out = append(out, pair{src, sink})
			}
		}
	}
	return out
}

// variables объявляет переменные всех категорий. Индексные пространства
// прямоугольны: сущности, отсутствующие в площадке, получают переменные,
// которые затем фиксируются в нуле.
func (b *builder) variables() error {
	nn := problem.NonNegativeReal
	topo := b.topo

	for _, t := range b.sched {
		for _, l := range topo.Locations {
			for _, p := range topo.Processes {
				b.declare(VarP, nn, t, l, p)
			}
			for _, p := range topo.MultiMode {
				for _, m := range topo.ProcessModes[p] {
					b.declare(VarPMode, nn, t, l, p, m)
					b.declare(VarXMode, problem.Binary, t, l, p, m)
				}
			}
			for _, r := range topo.Resources {
				b.declare(VarC, nn, t, l, r)
				b.declare(VarB, nn, t, l, r)
				b.declare(VarS, nn, t, l, r)
				b.declare(VarInv, nn, t, l, r)
			}
		}
		if b.transport {
			b.transportVariables(t)
		}
	}

	for _, n := range b.net {
		for _, l := range topo.Locations {
			for _, p := range topo.Processes {
				b.declare(VarCapP, nn, n, l, p)
				if b.siting {
					b.declare(VarXP, problem.Binary, n, l, p)
				}
				b.declare(VarCapexProc, nn, n, l, p)
				b.declare(VarFopexProc, nn, n, l, p)
				b.declare(VarVopexProc, nn, n, l, p)
			}
			for _, r := range topo.Storeable {
				b.declare(VarCapS, nn, n, l, r)
			}
			if b.land {
				b.declare(VarLand, nn, n, l)
			}
			if b.material {
				for _, m := range topo.Materials {
					b.declare(VarMat, nn, n, l, m)
				}
			}
			b.declare(VarCapexLoc, nn, n, l)
			b.declare(VarFopexLoc, nn, n, l)
			b.declare(VarVopexLoc, nn, n, l)
			b.declare(VarBLoc, nn, n, l)
		}
		b.declare(VarCapexNet, nn, n)
		b.declare(VarFopexNet, nn, n)
		b.declare(VarVopexNet, nn, n)
		b.declare(VarBNet, nn, n)
		b.declare(VarIncid, nn, n)
		b.declare(VarInvCost, nn, n)
		b.declare(VarRevenue, nn, n)
		for _, r := range topo.Resources {
			b.declare(VarSNet, nn, n, r)
		}
		if b.transport {
			b.declare(VarTransCost, nn, n)
			b.declare(VarCapexT, nn, n)
			b.declare(VarFopexT, nn, n)
			for _, pr := range b.pairs() {
				for _, tr := range topo.Transports {
					b.declare(VarCapT, nn, n, pr.src, pr.sink, tr)
				}
			}
		}
		if b.credit {
			b.declare(VarCredit, nn, n)
		}
		if b.land {
			b.declare(VarLandCost, nn, n)
		}
		if b.material {
			b.declare(VarMatCost, nn, n)
		}
		if b.gwp {
			// выбросы могут быть отрицательными (поглощение)
			b.declare(VarGWP, problem.Real, n)
		}
	}

	switch b.objective {
	case scenario.ObjectiveCostWDemandPenalty, scenario.ObjectiveProfitWDemandPenalty:
		for _, d := range b.dem {
			for _, dm := range b.demands {
				b.declare(VarPenalty, nn, d, dm.location, dm.resource)
			}
		}
	case scenario.ObjectiveUncertaintyCost:
		for _, u := range b.unc {
			for _, l := range b.demandLocations() {
				b.declare(VarSlack, nn, u, l)
			}
		}
	}

	if b.err != nil {
		return b.err
	}
	logger.Log.Debug("Variables declared",
		"total", b.p.NumVariables(),
		"categories", len(b.p.Categories()),
	)
	return nil
}

func (b *builder) transportVariables(t scale.Index) {
	nn := problem.NonNegativeReal
	for _, pr := range b.pairs() {
		for _, r := range b.topo.Transportable {
			b.declare(VarExp, nn, t, pr.src, pr.sink, r)
			b.declare(VarImp, nn, t, pr.sink, pr.src, r)
			for _, tr := range b.topo.Transports {
				b.declare(VarTransExp, nn, t, pr.src, pr.sink, r, tr)
				b.declare(VarTransImp, nn, t, pr.sink, pr.src, r, tr)
			}
		}
	}
}
