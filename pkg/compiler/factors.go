package compiler

import (
	"errors"

	"energia/pkg/apperror"
	"energia/pkg/factor"
	"energia/pkg/logger"
	"energia/pkg/scale"
	"energia/pkg/scenario"
	"energia/pkg/topology"
)

// factors таблицы площадок, приведённые к уровням потребления:
// мощность, цена и доступность к уровню расписания, спрос к уровню спроса.
type factors struct {
	capacity     map[string]*factor.Table
	price        map[string]*factor.Table
	availability map[string]*factor.Table
	demand       map[string]*factor.Table
}

func normalizeFactors(h *scale.Hierarchy, topo *topology.Topology, lv scenario.Levels) (*factors, error) {
	f := &factors{
		capacity:     make(map[string]*factor.Table),
		price:        make(map[string]*factor.Table),
		availability: make(map[string]*factor.Table),
		demand:       make(map[string]*factor.Table),
	}

	for _, name := range topo.Locations {
		loc := topo.Location(name)
		for _, item := range []struct {
			kind   string
			src    *factor.Table
			dst    map[string]*factor.Table
			target int
		}{
			{"capacity", loc.CapacityFactor, f.capacity, lv.Scheduling},
			{"price", loc.PriceFactor, f.price, lv.Scheduling},
			{"availability", loc.AvailabilityFactor, f.availability, lv.Scheduling},
			{"demand", loc.DemandFactor, f.demand, lv.Demand},
		} {
			if item.src == nil {
				continue
			}
			t, err := factor.Normalize(h, item.src, item.target)
			if err != nil {
				var e *apperror.Error
				if errors.As(err, &e) {
					return nil, e.WithDetails("location", name).WithDetails("factor", item.kind)
				}
				return nil, err
			}
			item.dst[name] = t
		}

		for _, p := range topo.VaryingCapacity {
			if topo.HasProcess(name, p) && !f.capacity[name].Has(p) {
				logger.Log.Warn("Varying process has no capacity factor, using 1",
					"location", name,
					"process", p,
				)
			}
		}
	}
	return f, nil
}

// capacityFactor доступность мощности процесса; постоянные процессы и
// процессы без ряда получают 1.
func (f *factors) capacityFactor(topo *topology.Topology, location, process string, t scale.Index) float64 {
	if !topo.ProcessCaps(process).Has(scenario.VaryingCapacity) {
		return 1
	}
	return f.capacity[location].ValueOr(process, t, 1)
}

func (f *factors) priceFactor(location, resource string, t scale.Index) float64 {
	return f.price[location].ValueOr(resource, t, 1)
}

func (f *factors) availabilityFactor(location, resource string, t scale.Index) float64 {
	return f.availability[location].ValueOr(resource, t, 1)
}

func (f *factors) demandFactor(location, resource string, d scale.Index) float64 {
	return f.demand[location].ValueOr(resource, d, 1)
}
