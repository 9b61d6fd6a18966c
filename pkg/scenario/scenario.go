// Package scenario содержит типизированные описания сценария энергосети:
// ресурсы, процессы, транспорт, материалы, площадки и сеть между ними.
// Описания — только данные; индексы и ограничения строит пакет compiler.
package scenario

import (
	"energia/pkg/factor"
)

// Objective выбор целевой функции
type Objective string

const (
	ObjectiveCost                 Objective = "cost"
	ObjectiveCostWDemandPenalty   Objective = "cost_w_demand_penalty"
	ObjectiveUncertaintyCost      Objective = "uncertainty_cost"
	ObjectiveDischargeMin         Objective = "discharge_min"
	ObjectiveDischargeMax         Objective = "discharge_max"
	ObjectiveProfit               Objective = "profit"
	ObjectiveProfitWDemandPenalty Objective = "profit_w_demand_penalty"
	ObjectiveGWPMin               Objective = "gwp_min"
)

// Family группа ограничений, включаемая сценарием
type Family string

// Транспорт, режимы и спрос включаются автоматически по составу сценария.
const (
	FamilySiting   Family = "siting"
	FamilyLand     Family = "land"
	FamilyMaterial Family = "material"
	FamilyGWP      Family = "gwp"
	FamilyCredit   Family = "credit"
)

// DemandSign знак ограничения спроса
type DemandSign string

const (
	DemandGEQ DemandSign = "geq"
	DemandLEQ DemandSign = "leq"
	DemandEQ  DemandSign = "eq"
)

// Levels уровни шкалы для классов решений
type Levels struct {
	// Network мощности, размещение и затраты
	Network int `json:"network" validate:"gte=0"`
	// Scheduling потоки производства, закупки, сбыта, запасов и транспорта
	Scheduling int `json:"scheduling" validate:"gte=0"`
	// Demand уровень, на котором задан спрос
	Demand int `json:"demand" validate:"gte=0"`
	// Uncertainty уровень переменных Demand_slack
	Uncertainty int `json:"uncertainty" validate:"gte=0"`
}

// Resource ресурс (энергоноситель, сырьё, продукт)
type Resource struct {
	Name         string       `json:"name" validate:"required"`
	Capabilities ResourceCaps `json:"capabilities"`
	// Price цена закупки единицы
	Price float64 `json:"price" validate:"gte=0"`
	// Revenue выручка за единицу сбыта
	Revenue float64 `json:"revenue" validate:"gte=0"`
	// ConsMax предел закупки за шаг планирования
	ConsMax float64 `json:"cons_max" validate:"gte=0"`
	// StorageCost стоимость хранения единицы запаса за шаг планирования
	StorageCost float64 `json:"storage_cost" validate:"gte=0"`
	GWP         float64 `json:"gwp"`
}

// Process производственный или накопительный процесс
type Process struct {
	Name string `json:"name" validate:"required"`
	// Conversion рецепт: ресурс -> коэффициент (отрицательный — потребление)
	Conversion map[string]float64 `json:"conversion,omitempty"`
	// Modes рецепты режимов для многорежимных процессов
	Modes map[string]map[string]float64 `json:"modes,omitempty"`

	ProdMax float64 `json:"prod_max" validate:"gte=0"`
	ProdMin float64 `json:"prod_min" validate:"gte=0,ltefield=ProdMax"`

	Capex float64 `json:"capex" validate:"gte=0"`
	Fopex float64 `json:"fopex" validate:"gte=0"`
	Vopex float64 `json:"vopex" validate:"gte=0"`
	// Incidental постоянные затраты размещённого процесса за сетевой период
	Incidental float64 `json:"incidental" validate:"gte=0"`
	// Credit кредит за единицу производства, учитывается с семейством credit
	Credit float64 `json:"credit" validate:"gte=0"`

	// Land площадь на единицу мощности
	Land float64 `json:"land" validate:"gte=0"`
	// Materials материал -> расход на единицу мощности
	Materials map[string]float64 `json:"materials,omitempty" validate:"dive,gte=0"`
	// Storage хранимый ресурс; непусто для накопителей
	Storage string `json:"storage,omitempty"`
	// FailureRate ожидаемая доля времени отказа
	FailureRate float64 `json:"failure_rate" validate:"gte=0,lt=1"`
	// VaryingCapacity доступность мощности задаётся рядом площадки
	VaryingCapacity bool    `json:"varying_capacity"`
	GWP             float64 `json:"gwp"`
}

// Material материал, расходуемый при строительстве мощностей
type Material struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	GWP   float64 `json:"gwp"`
}

// Transport вид транспорта
type Transport struct {
	Name      string   `json:"name" validate:"required"`
	Resources []string `json:"resources" validate:"required,min=1,dive,required"`
	// TransMax предел перевозки за шаг планирования
	TransMax float64 `json:"trans_max" validate:"gte=0"`
	// TransCost стоимость единицы на единицу расстояния
	TransCost float64 `json:"trans_cost" validate:"gte=0"`
	// Capex и Fopex на единицу пропускной способности и расстояния
	Capex float64 `json:"capex" validate:"gte=0"`
	Fopex float64 `json:"fopex" validate:"gte=0"`
}

// Location площадка
type Location struct {
	Name      string   `json:"name" validate:"required"`
	Processes []string `json:"processes" validate:"dive,required"`

	// CapacityFactor доступность мощности, сущность — процесс
	CapacityFactor *factor.Table `json:"-"`
	// PriceFactor множитель цены закупки, сущность — ресурс
	PriceFactor *factor.Table `json:"-"`
	// DemandFactor множитель спроса, сущность — ресурс
	DemandFactor *factor.Table `json:"-"`
	// AvailabilityFactor множитель предела закупки, сущность — ресурс
	AvailabilityFactor *factor.Table `json:"-"`

	// FixedCapacity закреплённая мощность процессов
	FixedCapacity map[string]float64 `json:"fixed_capacity,omitempty" validate:"dive,gte=0"`

	LandMax  float64 `json:"land_max" validate:"gte=0"`
	LandCost float64 `json:"land_cost" validate:"gte=0"`
}

// Link направленная связь source -> sink
type Link struct {
	Source     string   `json:"source" validate:"required"`
	Sink       string   `json:"sink" validate:"required"`
	Transports []string `json:"transports" validate:"dive,required"`
	Distance   float64  `json:"distance" validate:"gte=0"`
}

// Network сеть между площадками
type Network struct {
	Sources []string `json:"sources" validate:"dive,required"`
	Sinks   []string `json:"sinks" validate:"dive,required"`
	Links   []Link   `json:"links" validate:"dive"`
}

// Demand спрос на ресурс в площадке
type Demand struct {
	Location string  `json:"location" validate:"required"`
	Resource string  `json:"resource" validate:"required"`
	Amount   float64 `json:"amount" validate:"gte=0"`
	// Penalty штраф за единицу недопоставки
	Penalty float64 `json:"penalty" validate:"gte=0"`
}

// Scenario полное описание задачи
type Scenario struct {
	Name   string `json:"name" validate:"required"`
	Fanout []int  `json:"fanout" validate:"required,min=1,max=8,dive,gte=1"`
	Levels Levels `json:"levels"`

	Resources  []Resource  `json:"resources" validate:"required,min=1,dive"`
	Processes  []Process   `json:"processes" validate:"dive"`
	Materials  []Material  `json:"materials" validate:"dive"`
	Transports []Transport `json:"transports" validate:"dive"`
	Locations  []Location  `json:"locations" validate:"required,min=1,dive"`
	Network    *Network    `json:"network,omitempty"`
	Demands    []Demand    `json:"demands" validate:"dive"`

	Objective Objective `json:"objective" validate:"omitempty,oneof=cost cost_w_demand_penalty uncertainty_cost discharge_min discharge_max profit profit_w_demand_penalty gwp_min"`
	// ObjectiveResource ресурс для discharge_min/discharge_max
	ObjectiveResource string `json:"objective_resource,omitempty"`
	// Penalty вес Demand_slack в uncertainty_cost
	Penalty    float64    `json:"penalty" validate:"gte=0"`
	DemandSign DemandSign `json:"demand_sign" validate:"omitempty,oneof=geq leq eq"`
	Families   []Family   `json:"families" validate:"dive,oneof=siting land material gwp credit"`
}

// HasFamily true, если группа ограничений включена
func (s *Scenario) HasFamily(f Family) bool {
	for _, have := range s.Families {
		if have == f {
			return true
		}
	}
	return false
}

// ObjectiveOrDefault выбранная цель или cost
func (s *Scenario) ObjectiveOrDefault() Objective {
	if s.Objective == "" {
		return ObjectiveCost
	}
	return s.Objective
}

// DemandSignOrDefault знак спроса или geq
func (s *Scenario) DemandSignOrDefault() DemandSign {
	if s.DemandSign == "" {
		return DemandGEQ
	}
	return s.DemandSign
}

// IsMultiLocation true для сценариев с сетью
func (s *Scenario) IsMultiLocation() bool {
	return len(s.Locations) > 1
}
