package compiler

import (
	"maps"
	"slices"
	"strings"

	"energia/pkg/logger"
	"energia/pkg/problem"
	"energia/pkg/scale"
	"energia/pkg/scenario"
	"energia/pkg/topology"
)

func (b *builder) validate() error {
	if err := scenario.Validate(b.s); err != nil {
		return err
	}
	b.levels = b.s.Levels
	b.siting = b.s.HasFamily(scenario.FamilySiting)
	b.land = b.s.HasFamily(scenario.FamilyLand)
	b.material = b.s.HasFamily(scenario.FamilyMaterial)
	b.gwp = b.s.HasFamily(scenario.FamilyGWP) || b.objective == scenario.ObjectiveGWPMin
	b.credit = b.s.HasFamily(scenario.FamilyCredit)
	return nil
}

func (b *builder) hierarchy() error {
	h, err := scale.New(b.s.Fanout...)
	if err != nil {
		return err
	}
	b.h = h
	for _, lv := range []struct {
		level int
		dst   *[]scale.Index
	}{
		{b.levels.Scheduling, &b.sched},
		{b.levels.Network, &b.net},
		{b.levels.Demand, &b.dem},
		{b.levels.Uncertainty, &b.unc},
	} {
		set, err := h.IndexSet(lv.level)
		if err != nil {
			return err
		}
		*lv.dst = set
	}
	logger.Log.Debug("Scale hierarchy built",
		"fanout", b.s.Fanout,
		"scheduling", len(b.sched),
		"network", len(b.net),
		"demand", len(b.dem),
	)
	return nil
}

func (b *builder) topology() error {
	t, err := topology.Assemble(b.s)
	if err != nil {
		return err
	}
	b.topo = t
	b.transport = t.MultiLocation()
	b.p = problem.New(b.s.Name)
	b.demands = collectDemands(b.s.Demands, t)
	logger.Log.Debug("Topology assembled",
		"locations", len(t.Locations),
		"processes", len(t.Processes),
		"resources", len(t.Resources),
		"transports", len(t.Transports),
		"multi_location", b.transport,
	)
	return nil
}

func (b *builder) factors() error {
	f, err := normalizeFactors(b.h, b.topo, b.levels)
	if err != nil {
		return err
	}
	b.f = f
	return nil
}

// demandEntry спрос на ресурс в площадке после слияния повторов
type demandEntry struct {
	location string
	resource string
	amount   float64
	penalty  float64
}

// collectDemands сливает повторные записи (суммы складываются, штраф берётся
// максимальный) и отбрасывает спрос вне площадок спроса топологии.
func collectDemands(in []scenario.Demand, t *topology.Topology) []demandEntry {
	type key struct{ l, r string }
	merged := make(map[key]*demandEntry)
	for _, d := range in {
		if !slices.Contains(t.DemandLocations(), d.Location) {
			logger.Log.Warn("Demand outside demand locations is ignored",
				"location", d.Location,
				"resource", d.Resource,
			)
			continue
		}
		k := key{d.Location, d.Resource}
		if e, ok := merged[k]; ok {
			e.amount += d.Amount
			e.penalty = max(e.penalty, d.Penalty)
			continue
		}
		merged[k] = &demandEntry{location: d.Location, resource: d.Resource, amount: d.Amount, penalty: d.Penalty}
	}

	keys := slices.SortedFunc(maps.Keys(merged), func(a, b key) int {
		if a.l != b.l {
			return strings.Compare(a.l, b.l)
		}
		return strings.Compare(a.r, b.r)
	})
	out := make([]demandEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, *merged[k])
	}
	return out
}

// demandLocations площадки, в которых задан хотя бы один спрос
func (b *builder) demandLocations() []string {
	var out []string
	for _, d := range b.demands {
		if len(out) == 0 || out[len(out)-1] != d.location {
			out = append(out, d.location)
		}
	}
	return out
}
