// Package scenariotest содержит небольшие сценарии для тестов компилятора,
// решателя и сервиса.
package scenariotest

import (
	"energia/pkg/factor"
	"energia/pkg/scale"
	"energia/pkg/scenario"
)

// SingleSite одна площадка, одна установка мощностью capacity, спрос demand
// на один шаг планирования.
func SingleSite(capacity, demand float64) *scenario.Scenario {
	return &scenario.Scenario{
		Name:   "single-site",
		Fanout: []int{1},
		Resources: []scenario.Resource{
			{Name: "gas", Capabilities: scenario.Purchasable, Price: 1, ConsMax: 1000},
			{Name: "power", Capabilities: scenario.Sellable | scenario.DemandBearing, Revenue: 5},
		},
		Processes: []scenario.Process{
			{
				Name:       "plant",
				Conversion: map[string]float64{"gas": -1, "power": 1},
				ProdMax:    capacity,
				Vopex:      1,
			},
		},
		Locations: []scenario.Location{
			{Name: "site", Processes: []string{"plant"}},
		},
		Demands: []scenario.Demand{
			{Location: "site", Resource: "power", Amount: demand},
		},
		Objective: scenario.ObjectiveCost,
	}
}

// TwoSites источник с генерацией и потребитель без процессов, связанные
// одним видом транспорта мощностью transMax; спрос demand у потребителя.
func TwoSites(transMax, demand float64) *scenario.Scenario {
	return &scenario.Scenario{
		Name:   "two-sites",
		Fanout: []int{1},
		Resources: []scenario.Resource{
			{Name: "power", Capabilities: scenario.Transportable | scenario.DemandBearing},
		},
		Processes: []scenario.Process{
			{
				Name:       "pv",
				Conversion: map[string]float64{"power": 1},
				ProdMax:    500,
				Vopex:      1,
			},
		},
		Transports: []scenario.Transport{
			{Name: "line", Resources: []string{"power"}, TransMax: transMax, TransCost: 0.1},
		},
		Locations: []scenario.Location{
			{Name: "src", Processes: []string{"pv"}},
			{Name: "dst"},
		},
		Network: &scenario.Network{
			Sources: []string{"src"},
			Sinks:   []string{"dst"},
			Links: []scenario.Link{
				{Source: "src", Sink: "dst", Transports: []string{"line"}, Distance: 10},
			},
		},
		Demands: []scenario.Demand{
			{Location: "dst", Resource: "power", Amount: demand},
		},
		Objective: scenario.ObjectiveCost,
	}
}

// Seasonal двухуровневая шкала (2 сезона × 3 часа), солнечная генерация с
// переменной доступностью, аккумулятор и сетевая закупка. Мощности решаются
// на уровне сезона, расписание — по часам.
func Seasonal() *scenario.Scenario {
	return SeasonalHours(3)
}

// SeasonalHours то же, что Seasonal, но с hours часами в сезоне. Профиль
// солнца повторяется с периодом в три часа.
func SeasonalHours(hours int) *scenario.Scenario {
	// доступность солнца: зимой ниже, ночью ноль
	sun := factor.NewTable(1)
	profile := [2][3]float64{{0, 0.4, 0.2}, {0, 0.9, 0.6}}
	for season := range profile {
		for hour := 0; hour < hours; hour++ {
			sun.Set("pv", scale.NewIndex(season, hour), profile[season][hour%3])
		}
	}

	return &scenario.Scenario{
		Name:   "seasonal",
		Fanout: []int{2, hours},
		Levels: scenario.Levels{Network: 0, Scheduling: 1, Demand: 1, Uncertainty: 0},
		Resources: []scenario.Resource{
			{Name: "sun", Capabilities: scenario.Purchasable, Price: 0, ConsMax: 1000},
			{Name: "grid", Capabilities: scenario.Purchasable, Price: 20, ConsMax: 1000},
			{Name: "power", Capabilities: scenario.Storeable | scenario.Sellable | scenario.DemandBearing, Revenue: 30},
		},
		Processes: []scenario.Process{
			{
				Name:            "pv",
				Conversion:      map[string]float64{"sun": -1, "power": 1},
				ProdMax:         100,
				Capex:           5,
				VaryingCapacity: true,
				Land:            2,
			},
			{
				Name:       "import",
				Conversion: map[string]float64{"grid": -1, "power": 1},
				ProdMax:    100,
			},
			{
				Name:    "battery",
				Storage: "power",
				ProdMax: 50,
				Capex:   1,
			},
		},
		Locations: []scenario.Location{
			{
				Name:           "farm",
				Processes:      []string{"pv", "import", "battery"},
				CapacityFactor: sun,
				LandMax:        1000,
				LandCost:       0.5,
			},
		},
		Demands: []scenario.Demand{
			{Location: "farm", Resource: "power", Amount: 10, Penalty: 100},
		},
		Objective: scenario.ObjectiveCost,
		Families:  []scenario.Family{scenario.FamilyLand},
	}
}
