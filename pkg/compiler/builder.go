package compiler

import (
	"energia/pkg/apperror"
	"energia/pkg/problem"
	"energia/pkg/scale"
	"energia/pkg/scenario"
	"energia/pkg/topology"
)

// Категории переменных
const (
	VarP         = "P"
	VarPMode     = "P_m"
	VarXMode     = "X_P_m"
	VarC         = "C"
	VarB         = "B"
	VarS         = "S"
	VarInv       = "Inv"
	VarExp       = "Exp"
	VarImp       = "Imp"
	VarTransExp  = "Trans_exp"
	VarTransImp  = "Trans_imp"
	VarCapP      = "Cap_P"
	VarXP        = "X_P"
	VarCapS      = "Cap_S"
	VarLand      = "Land"
	VarMat       = "Mat"
	VarCapexProc = "Capex_process"
	VarFopexProc = "Fopex_process"
	VarVopexProc = "Vopex_process"
	VarCapexLoc  = "Capex_location"
	VarFopexLoc  = "Fopex_location"
	VarVopexLoc  = "Vopex_location"
	VarBLoc      = "B_location"
	VarCapexNet  = "Capex_network"
	VarFopexNet  = "Fopex_network"
	VarVopexNet  = "Vopex_network"
	VarBNet      = "B_network"
	VarTransCost = "Trans_cost_network"
	VarCapT      = "Cap_trans"
	VarCapexT    = "Capex_transport_network"
	VarFopexT    = "Fopex_transport_network"
	VarLandCost  = "Land_cost_network"
	VarMatCost   = "Mat_cost_network"
	VarIncid     = "Incidental_network"
	VarInvCost   = "Inv_cost_network"
	VarCredit    = "Credit_network"
	VarSNet      = "S_network"
	VarRevenue   = "Revenue_network"
	VarGWP       = "GWP_network"
	VarPenalty   = "Demand_penalty"
	VarSlack     = "Demand_slack"
)

// Семейства ограничений
const (
	FamMassBalance      = "mass_balance"
	FamNameplate        = "nameplate_production"
	FamNameplateInv     = "nameplate_inventory"
	FamStorageCapacity  = "storage_capacity"
	FamProductionMax    = "production_max"
	FamProductionMin    = "production_min"
	FamFacilityAffix    = "facility_affix"
	FamFacilityFix      = "facility_fix"
	FamPurchaseBound    = "purchase_bound"
	FamPurchaseCost     = "purchase_cost"
	FamDischargeBound   = "discharge_bound"
	FamModeSplit        = "mode_split"
	FamModeBound        = "mode_bound"
	FamModeExclusive    = "mode_exclusive"
	FamTransportExport  = "transport_export"
	FamTransportImport  = "transport_import"
	FamTransportBalance = "transport_balance"
	FamTransportExpUB   = "transport_exp_ub"
	FamTransportImpUB   = "transport_imp_ub"
	FamTransportCost    = "transport_cost"
	FamTransportCap     = "transport_capacity"
	FamTransportCapMax  = "transport_capacity_max"
	FamCapexTransport   = "capex_transport"
	FamFopexTransport   = "fopex_transport"
	FamCapexProcess     = "capex_process"
	FamFopexProcess     = "fopex_process"
	FamVopexProcess     = "vopex_process"
	FamCapexLocation    = "capex_location"
	FamFopexLocation    = "fopex_location"
	FamVopexLocation    = "vopex_location"
	FamBLocation        = "b_location"
	FamCapexNetwork     = "capex_network"
	FamFopexNetwork     = "fopex_network"
	FamVopexNetwork     = "vopex_network"
	FamBNetwork         = "b_network"
	FamDischargeNetwork = "discharge_network"
	FamRevenueNetwork   = "revenue_network"
	FamIncidental       = "incidental_network"
	FamInventoryCost    = "inventory_cost"
	FamCreditNetwork    = "credit_network"
	FamLandUse          = "land_use"
	FamLandMax          = "land_max"
	FamLandCost         = "land_cost"
	FamMaterialUse      = "material_use"
	FamMaterialCost     = "material_cost"
	FamGWPNetwork       = "gwp_network"
	FamDemand           = "demand"
	FamDemandPenalty    = "demand_penalty"
	FamDemandSlack      = "demand_slack"
)

// builder состояние одной компиляции. Ошибка запоминается при первом
// сбое, последующие вызовы declare/constrain ничего не делают.
type builder struct {
	s         *scenario.Scenario
	opts      Options
	objective scenario.Objective

	h    *scale.Hierarchy
	topo *topology.Topology
	f    *factors
	p    *problem.Problem

	levels scenario.Levels
	sched  []scale.Index
	net    []scale.Index
	dem    []scale.Index
	unc    []scale.Index

	demands []demandEntry

	transport bool
	siting    bool
	land      bool
	material  bool
	gwp       bool
	credit    bool

	err error
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// declare объявляет переменную
func (b *builder) declare(category string, domain problem.Domain, idx scale.Index, names ...string) {
	if b.err != nil {
		return
	}
	if _, err := b.p.AddVariable(problem.K(category, idx, names...), domain); err != nil {
		b.fail(err)
	}
}

// constrain добавляет ограничение expr (sense) rhs
func (b *builder) constrain(family string, expr *problem.Expr, sense problem.Sense, rhs float64, idx scale.Index, names ...string) {
	if b.err != nil {
		return
	}
	if err := b.p.AddConstraint(problem.K(family, idx, names...), expr, sense, rhs); err != nil {
		b.fail(err)
	}
}

// zero фиксирует переменную в нуле под именем семейства
func (b *builder) zero(family string, v problem.Key, idx scale.Index, names ...string) {
	b.constrain(family, problem.NewExpr().Add(v, 1), problem.EQ, 0, idx, names...)
}

// children индексы уровня level под parent. Уровни согласованы на стадии
// validate, поэтому ошибка означает внутренний сбой.
func (b *builder) children(parent scale.Index, level int) []scale.Index {
	seq, err := b.h.Children(parent, level)
	if err != nil {
		b.fail(apperror.Wrap(err, apperror.CodeInternal, "index enumeration failed"))
		return nil
	}
	var out []scale.Index
	for idx := range seq {
		out = append(out, idx)
	}
	return out
}

// up усечение индекса до уровня
func (b *builder) up(idx scale.Index, level int) scale.Index {
	out, err := idx.Truncate(level)
	if err != nil {
		b.fail(apperror.Wrap(err, apperror.CodeInternal, "index truncation failed"))
	}
	return out
}

func k(category string, idx scale.Index, names ...string) problem.Key {
	return problem.K(category, idx, names...)
}

// recipeCoef коэффициент ресурса в рецепте однорежимного процесса или режима
func recipeCoef(p *scenario.Process, mode, resource string) float64 {
	if mode == "" {
		return p.Conversion[resource]
	}
	return p.Modes[mode][resource]
}

// sellable ресурс может покидать площадку через S
func sellable(caps scenario.ResourceCaps) bool {
	return caps.Has(scenario.Sellable) || caps.Has(scenario.DemandBearing)
}
