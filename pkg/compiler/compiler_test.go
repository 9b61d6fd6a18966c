package compiler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energia/pkg/apperror"
	"energia/pkg/compiler"
	"energia/pkg/factor"
	"energia/pkg/problem"
	"energia/pkg/scale"
	"energia/pkg/scenario"
	"energia/pkg/scenario/scenariotest"
	"energia/pkg/solver"
)

const tol = 1e-6

var t0 = scale.NewIndex(0)

func compile(t *testing.T, s *scenario.Scenario) *compiler.Compilation {
	t.Helper()
	c, err := compiler.Compile(context.Background(), s)
	require.NoError(t, err)
	require.True(t, c.Problem.Sealed())
	return c
}

func solve(t *testing.T, s *scenario.Scenario) *problem.Solution {
	t.Helper()
	sol, err := compile(t, s).Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	return sol
}

func value(t *testing.T, sol *problem.Solution, category string, idx scale.Index, names ...string) float64 {
	t.Helper()
	v, ok := sol.Value(problem.K(category, idx, names...))
	require.True(t, ok, "no value for %s", problem.K(category, idx, names...))
	return v
}

func TestCompile_SingleSiteMeetsDemand(t *testing.T) {
	sol := solve(t, scenariotest.SingleSite(20, 15))
	require.Equal(t, problem.StatusOptimal, sol.Status)

	assert.InDelta(t, 15, value(t, sol, compiler.VarP, t0, "site", "plant"), tol)
	assert.InDelta(t, 15, value(t, sol, compiler.VarC, t0, "site", "gas"), tol)
	assert.InDelta(t, 15, value(t, sol, compiler.VarS, t0, "site", "power"), tol)
	// vopex 15 + закупка газа 15
	assert.InDelta(t, 30, sol.Objective, tol)
}

func TestCompile_TwoSitesTransport(t *testing.T) {
	sol := solve(t, scenariotest.TwoSites(100, 40))
	require.Equal(t, problem.StatusOptimal, sol.Status)

	exp := value(t, sol, compiler.VarExp, t0, "src", "dst", "power")
	imp := value(t, sol, compiler.VarImp, t0, "dst", "src", "power")
	assert.InDelta(t, 40, exp, tol)
	assert.InDelta(t, 40, imp, tol)
	assert.InDelta(t, 40, value(t, sol, compiler.VarTransExp, t0, "src", "dst", "power", "line"), tol)
	// vopex 40 + перевозка 40 * 0.1 * 10
	assert.InDelta(t, 80, sol.Objective, tol)
}

func TestCompile_TransportCapacityBinds(t *testing.T) {
	sol := solve(t, scenariotest.TwoSites(30, 40))
	assert.Equal(t, problem.StatusInfeasible, sol.Status)
}

func TestCompile_DemandAboveCapacityIsInfeasible(t *testing.T) {
	sol := solve(t, scenariotest.SingleSite(20, 25))
	assert.Equal(t, problem.StatusInfeasible, sol.Status)
	assert.True(t, apperror.Is(sol.Err(), apperror.CodeInfeasibleProblem))
	assert.Empty(t, sol.Assignments(0))
}

func TestCompile_Deterministic(t *testing.T) {
	keys := func(c *compiler.Compilation) ([]problem.Key, []problem.Key) {
		var vars, cons []problem.Key
		for _, v := range c.Problem.Variables() {
			vars = append(vars, v.Key)
		}
		for _, r := range c.Problem.Constraints() {
			cons = append(cons, r.Key)
		}
		return vars, cons
	}

	for _, s := range []func() *scenario.Scenario{
		func() *scenario.Scenario { return scenariotest.SingleSite(20, 15) },
		func() *scenario.Scenario { return scenariotest.TwoSites(100, 40) },
		scenariotest.Seasonal,
	} {
		v1, c1 := keys(compile(t, s()))
		v2, c2 := keys(compile(t, s()))
		assert.Equal(t, v1, v2)
		assert.Equal(t, c1, c2)
	}
}

func TestCompile_ForcedZeroKeepsIndexSpacesRectangular(t *testing.T) {
	c := compile(t, scenariotest.TwoSites(100, 40))
	p, topo := c.Problem, c.Topology

	for _, l := range topo.Locations {
		for _, proc := range topo.Processes {
			for _, fam := range []string{compiler.FamNameplate, compiler.FamProductionMax, compiler.FamProductionMin} {
				assert.True(t, p.HasConstraint(problem.K(fam, t0, l, proc)), "%s missing for %s/%s", fam, l, proc)
			}
		}
		for _, r := range topo.Resources {
			for _, fam := range []string{compiler.FamMassBalance, compiler.FamPurchaseBound, compiler.FamPurchaseCost, compiler.FamNameplateInv} {
				assert.True(t, p.HasConstraint(problem.K(fam, t0, l, r)), "%s missing for %s/%s", fam, l, r)
			}
		}
	}

	// dst не содержит pv: производство зафиксировано в нуле, а не опущено
	row, ok := p.Constraint(problem.K(compiler.FamNameplate, t0, "dst", "pv"))
	require.True(t, ok)
	assert.Equal(t, problem.EQ, row.Sense)
	assert.Equal(t, 0.0, row.RHS)
	require.Len(t, row.Coefs, 1)
	v := p.Variables()[row.Coefs[0].Col]
	assert.Equal(t, problem.K(compiler.VarP, t0, "dst", "pv"), v.Key)
}

func TestCompile_Seasonal(t *testing.T) {
	c := compile(t, scenariotest.Seasonal())
	sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)

	hours, err := c.Hierarchy.IndexSet(1)
	require.NoError(t, err)
	require.Len(t, hours, 6)
	for _, h := range hours {
		assert.GreaterOrEqual(t, value(t, sol, compiler.VarS, h, "farm", "power"), 10-tol, "demand at %s", h)
		season := h.MustTruncate(0)
		assert.LessOrEqual(t, value(t, sol, compiler.VarInv, h, "farm", "power"),
			value(t, sol, compiler.VarCapS, season, "farm", "power")+tol)
		if h.At(1) == 0 {
			// ночью солнца нет
			assert.InDelta(t, 0, value(t, sol, compiler.VarP, h, "farm", "pv"), tol, "pv at %s", h)
		}
	}

	for _, season := range []scale.Index{scale.NewIndex(0), scale.NewIndex(1)} {
		capPV := value(t, sol, compiler.VarCapP, season, "farm", "pv")
		assert.InDelta(t, 2*capPV, value(t, sol, compiler.VarLand, season, "farm"), tol)
		assert.LessOrEqual(t, capPV, 100+tol)
	}
}

func TestCompile_SeasonalCapacityLinksToNetworkIndex(t *testing.T) {
	c := compile(t, scenariotest.Seasonal())

	// час (1,2) ограничен мощностью сезонного индекса (1) с фактором 0.6
	row, ok := c.Problem.Constraint(problem.K(compiler.FamNameplate, scale.NewIndex(1, 2), "farm", "pv"))
	require.True(t, ok)
	require.Len(t, row.Coefs, 2)

	byKey := make(map[problem.Key]float64)
	for _, co := range row.Coefs {
		byKey[c.Problem.Variables()[co.Col].Key] = co.Val
	}
	assert.Equal(t, 1.0, byKey[problem.K(compiler.VarP, scale.NewIndex(1, 2), "farm", "pv")])
	assert.InDelta(t, -0.6, byKey[problem.K(compiler.VarCapP, scale.NewIndex(1), "farm", "pv")], 1e-12)
}

func TestCompile_Objectives(t *testing.T) {
	tests := []struct {
		name  string
		build func() *scenario.Scenario
		want  float64
	}{
		{
			name: "profit sells full capacity",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Objective = scenario.ObjectiveProfit
				return s
			},
			// 20*5 - (20 + 20)
			want: 60,
		},
		{
			name: "discharge max",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Objective = scenario.ObjectiveDischargeMax
				s.ObjectiveResource = "power"
				return s
			},
			want: 20,
		},
		{
			name: "discharge min",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Objective = scenario.ObjectiveDischargeMin
				s.ObjectiveResource = "power"
				return s
			},
			want: 15,
		},
		{
			name: "demand penalty covers shortfall",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 25)
				s.Objective = scenario.ObjectiveCostWDemandPenalty
				s.Demands[0].Penalty = 100
				return s
			},
			// 40 за производство + 5 * 100
			want: 540,
		},
		{
			name: "profit with demand penalty",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 25)
				s.Objective = scenario.ObjectiveProfitWDemandPenalty
				s.Demands[0].Penalty = 100
				return s
			},
			// 20*5 - 40 - 5*100
			want: -440,
		},
		{
			name: "incidental cost of a hosted process",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Processes[0].Incidental = 7
				return s
			},
			want: 37,
		},
		{
			name: "incidental cost skipped for an unsited process",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 0)
				s.Processes[0].Incidental = 7
				s.Families = []scenario.Family{scenario.FamilySiting}
				return s
			},
			want: 0,
		},
		{
			name: "credit reduces cost",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Processes[0].Credit = 0.5
				s.Families = []scenario.Family{scenario.FamilyCredit}
				return s
			},
			// 30 - 15*0.5
			want: 22.5,
		},
		{
			name: "credit ignored without its family",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Processes[0].Credit = 0.5
				return s
			},
			want: 30,
		},
		{
			name: "transport capex and fopex on capacity",
			build: func() *scenario.Scenario {
				s := scenariotest.TwoSites(100, 40)
				s.Transports[0].Capex = 0.5
				s.Transports[0].Fopex = 0.1
				return s
			},
			// 80 + (0.5 + 0.1) * 10 * 40
			want: 320,
		},
		{
			name: "uncertainty slack",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 25)
				s.Objective = scenario.ObjectiveUncertaintyCost
				s.Penalty = 100
				return s
			},
			want: 540,
		},
		{
			name: "gwp min",
			build: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Objective = scenario.ObjectiveGWPMin
				s.Resources[0].GWP = 2
				return s
			},
			want: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol := solve(t, tt.build())
			require.Equal(t, problem.StatusOptimal, sol.Status)
			assert.InDelta(t, tt.want, sol.Objective, tol)
		})
	}
}

func TestCompile_DemandSign(t *testing.T) {
	s := scenariotest.SingleSite(20, 15)
	s.Objective = scenario.ObjectiveDischargeMax
	s.ObjectiveResource = "power"
	s.DemandSign = scenario.DemandEQ

	sol := solve(t, s)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 15, sol.Objective, tol)

	// переопределение компилятора важнее сценария
	c, err := compiler.New(compiler.Options{BigM: 1e4, DemandSign: scenario.DemandGEQ}).
		Compile(context.Background(), s)
	require.NoError(t, err)
	sol, err = c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	assert.InDelta(t, 20, sol.Objective, tol)
}

func TestCompile_DemandPenaltyKeepsSign(t *testing.T) {
	tests := []struct {
		name      string
		objective scenario.Objective
		sign      scenario.DemandSign
		sense     problem.Sense
		want      float64
	}{
		{"cost leq", scenario.ObjectiveCostWDemandPenalty, scenario.DemandLEQ, problem.LE, 0},
		{"cost eq", scenario.ObjectiveCostWDemandPenalty, scenario.DemandEQ, problem.EQ, 30},
		{"cost geq", scenario.ObjectiveCostWDemandPenalty, scenario.DemandGEQ, problem.GE, 30},
		// сбыт не выше 15: 15*5 - 30
		{"profit leq", scenario.ObjectiveProfitWDemandPenalty, scenario.DemandLEQ, problem.LE, 45},
		{"profit geq", scenario.ObjectiveProfitWDemandPenalty, scenario.DemandGEQ, problem.GE, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scenariotest.SingleSite(20, 15)
			s.Objective = tt.objective
			s.DemandSign = tt.sign
			s.Demands[0].Penalty = 100

			c := compile(t, s)
			row, ok := c.Problem.Constraint(problem.K(compiler.FamDemandPenalty, t0, "site", "power"))
			require.True(t, ok)
			assert.Equal(t, tt.sense, row.Sense)

			sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
			require.NoError(t, err)
			require.Equal(t, problem.StatusOptimal, sol.Status)
			assert.InDelta(t, tt.want, sol.Objective, tol)
			assert.InDelta(t, 0, value(t, sol, compiler.VarPenalty, t0, "site", "power"), tol)
		})
	}
}

// hourly SingleSite на шкале 2 сезона × 3 часа: мощности по сезонам,
// расписание по часам, спрос на уровне demandLevel.
func hourly(demandLevel int) *scenario.Scenario {
	s := scenariotest.SingleSite(20, 10)
	s.Fanout = []int{2, 3}
	s.Levels = scenario.Levels{Network: 0, Scheduling: 1, Demand: demandLevel, Uncertainty: 0}
	s.Resources[0].ConsMax = 20
	return s
}

// seasonTable таблица уровня сезонов с одним рядом
func seasonTable(entity string, values ...float64) *factor.Table {
	tb := factor.NewTable(0)
	for i, v := range values {
		tb.Set(entity, scale.NewIndex(i), v)
	}
	return tb
}

// sumOver сумма значений категории по часам сезона
func sumOver(t *testing.T, sol *problem.Solution, category string, season int, names ...string) float64 {
	t.Helper()
	total := 0.0
	for h := 0; h < 3; h++ {
		total += value(t, sol, category, scale.NewIndex(season, h), names...)
	}
	return total
}

func TestCompile_DemandCoarserThanScheduling(t *testing.T) {
	s := hourly(0)
	s.Locations[0].DemandFactor = seasonTable("power", 3, 1)

	c := compile(t, s)
	row, ok := c.Problem.Constraint(problem.K(compiler.FamDemand, scale.NewIndex(0), "site", "power"))
	require.True(t, ok)
	assert.Len(t, row.Coefs, 3, "demand row sums the hours of the season")
	assert.InDelta(t, 30, row.RHS, 1e-12)

	sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 30, sumOver(t, sol, compiler.VarS, 0, "site", "power"), tol)
	assert.InDelta(t, 10, sumOver(t, sol, compiler.VarS, 1, "site", "power"), tol)
	assert.InDelta(t, 80, sol.Objective, tol)
}

func TestCompile_UncertaintyCoarserThanDemand(t *testing.T) {
	s := hourly(1)
	s.Processes[0].ProdMax = 12
	s.Demands[0].Amount = 15
	s.Objective = scenario.ObjectiveUncertaintyCost
	s.Penalty = 100

	c := compile(t, s)
	row, ok := c.Problem.Constraint(problem.K(compiler.FamDemandSlack, scale.NewIndex(1), "site"))
	require.True(t, ok)
	assert.InDelta(t, 45, row.RHS, 1e-12)

	sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	for season := 0; season < 2; season++ {
		// 45 спроса против 36 мощности за сезон
		assert.InDelta(t, 9, value(t, sol, compiler.VarSlack, scale.NewIndex(season), "site"), tol)
		assert.InDelta(t, 36, sumOver(t, sol, compiler.VarS, season, "site", "power"), tol)
	}
	assert.InDelta(t, 2*(2*36+9*100), sol.Objective, tol)
}

func TestCompile_PriceAndAvailabilityFactors(t *testing.T) {
	s := hourly(0)
	s.Locations[0].DemandFactor = seasonTable("power", 3, 1)

	price, avail := factor.NewTable(1), factor.NewTable(1)
	for season := 0; season < 2; season++ {
		for h := 0; h < 3; h++ {
			price.Set("gas", scale.NewIndex(season, h), 1)
			avail.Set("gas", scale.NewIndex(season, h), 1)
		}
	}
	price.Set("gas", scale.NewIndex(0, 2), 0.5)
	avail.Set("gas", scale.NewIndex(0, 0), 0.25)
	s.Locations[0].PriceFactor = price
	s.Locations[0].AvailabilityFactor = avail

	c := compile(t, s)
	row, ok := c.Problem.Constraint(problem.K(compiler.FamPurchaseBound, scale.NewIndex(0, 0), "site", "gas"))
	require.True(t, ok)
	assert.InDelta(t, 5, row.RHS, 1e-12)

	sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)

	cheap := scale.NewIndex(0, 2)
	assert.InDelta(t, 20, value(t, sol, compiler.VarC, cheap, "site", "gas"), tol)
	assert.InDelta(t, 10, value(t, sol, compiler.VarB, cheap, "site", "gas"), tol)
	assert.LessOrEqual(t, value(t, sol, compiler.VarC, scale.NewIndex(0, 0), "site", "gas"), 5+tol)
	// сезон 0: 30 vopex + 20*0.5 + 10; сезон 1: 10 + 10
	assert.InDelta(t, 70, sol.Objective, tol)
}

func TestCompile_SitingPerNetworkPeriod(t *testing.T) {
	s := hourly(0)
	s.Demands[0].Amount = 30
	s.Locations[0].DemandFactor = seasonTable("power", 0, 1)
	s.Processes[0].Incidental = 7
	s.Families = []scenario.Family{scenario.FamilySiting}

	sol := solve(t, s)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.Equal(t, 0.0, value(t, sol, compiler.VarXP, scale.NewIndex(0), "site", "plant"))
	assert.Equal(t, 1.0, value(t, sol, compiler.VarXP, scale.NewIndex(1), "site", "plant"))
	assert.InDelta(t, 0, value(t, sol, compiler.VarIncid, scale.NewIndex(0)), tol)
	assert.InDelta(t, 7, value(t, sol, compiler.VarIncid, scale.NewIndex(1)), tol)
	// 30*2 + 7
	assert.InDelta(t, 67, sol.Objective, tol)
}

func TestCompile_StorageCost(t *testing.T) {
	cheap := scenariotest.Seasonal()
	cheap.Resources[2].StorageCost = 0.01
	sol := solve(t, cheap)
	require.Equal(t, problem.StatusOptimal, sol.Status)

	for _, season := range []int{0, 1} {
		held := sumOver(t, sol, compiler.VarInv, season, "farm", "power")
		assert.InDelta(t, 0.01*held, value(t, sol, compiler.VarInvCost, scale.NewIndex(season)), tol)
	}

	costly := scenariotest.Seasonal()
	costly.Resources[2].StorageCost = 1000
	sol = solve(t, costly)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	for _, season := range []int{0, 1} {
		assert.InDelta(t, 0, sumOver(t, sol, compiler.VarInv, season, "farm", "power"), tol)
	}
}

func TestCompile_Siting(t *testing.T) {
	s := scenariotest.SingleSite(20, 15)
	s.Families = []scenario.Family{scenario.FamilySiting}
	s.Processes[0].Capex = 1
	s.Processes[0].ProdMin = 5

	c := compile(t, s)
	assert.Positive(t, c.Problem.Stats().Binaries)
	assert.True(t, c.Problem.HasConstraint(problem.K(compiler.FamFacilityFix, t0, "site", "plant")))

	sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.Equal(t, 1.0, value(t, sol, compiler.VarXP, t0, "site", "plant"))
	assert.InDelta(t, 15, value(t, sol, compiler.VarCapP, t0, "site", "plant"), tol)
	assert.InDelta(t, 45, sol.Objective, tol)
}

func TestCompile_SeasonalSiting(t *testing.T) {
	// расписание должно решаться за секунды, а не упираться в таймаут
	opts := func(relax bool) *solver.Options {
		return solver.DefaultOptions().WithTimeout(20 * time.Second).WithRelax(relax)
	}

	for _, hours := range []int{3, 12} {
		base := compile(t, scenariotest.SeasonalHours(hours))
		ref, err := base.Problem.Solve(context.Background(), solver.New(opts(false)))
		require.NoError(t, err)
		require.Equal(t, problem.StatusOptimal, ref.Status, "hours %d without siting", hours)

		for _, relax := range []bool{false, true} {
			t.Run(fmt.Sprintf("hours=%d relax=%t", hours, relax), func(t *testing.T) {
				s := scenariotest.SeasonalHours(hours)
				s.Families = append(s.Families, scenario.FamilySiting)
				c := compile(t, s)

				sol, err := c.Problem.Solve(context.Background(), solver.New(opts(relax)))
				require.NoError(t, err)
				require.Equal(t, problem.StatusOptimal, sol.Status)
				// без постоянных затрат выбор площадок не меняет стоимость
				assert.InDelta(t, ref.Objective, sol.Objective, 1e-5*ref.Objective)

				for _, n := range []scale.Index{scale.NewIndex(0), scale.NewIndex(1)} {
					for _, p := range []string{"pv", "import", "battery"} {
						x := value(t, sol, compiler.VarXP, n, "farm", p)
						capP := value(t, sol, compiler.VarCapP, n, "farm", p)
						assert.LessOrEqual(t, capP, compiler.DefaultBigM*x+tol, "%s at %s", p, n)
						if !relax {
							assert.Contains(t, []float64{0, 1}, x)
						}
					}
				}

				hrs, err := c.Hierarchy.IndexSet(1)
				require.NoError(t, err)
				require.Len(t, hrs, 2*hours)
				for _, h := range hrs {
					assert.GreaterOrEqual(t, value(t, sol, compiler.VarS, h, "farm", "power"), 10-tol, "demand at %s", h)
				}
			})
		}
	}
}

func TestCompile_FacilityAffix(t *testing.T) {
	s := scenariotest.SingleSite(20, 15)
	s.Processes[0].Capex = 1
	s.Locations[0].FixedCapacity = map[string]float64{"plant": 18}

	sol := solve(t, s)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 18, value(t, sol, compiler.VarCapP, t0, "site", "plant"), tol)
}

func TestCompile_Modes(t *testing.T) {
	s := scenariotest.SingleSite(20, 15)
	s.Processes[0].Conversion = nil
	s.Processes[0].Modes = map[string]map[string]float64{
		"efficient": {"gas": -1, "power": 1},
		"wasteful":  {"gas": -2, "power": 1},
	}

	c := compile(t, s)
	assert.True(t, c.Problem.HasConstraint(problem.K(compiler.FamModeExclusive, t0, "site", "plant")))
	sol, err := c.Problem.Solve(context.Background(), solver.New(nil))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)

	assert.InDelta(t, 15, value(t, sol, compiler.VarPMode, t0, "site", "plant", "efficient"), tol)
	assert.InDelta(t, 0, value(t, sol, compiler.VarPMode, t0, "site", "plant", "wasteful"), tol)
	assert.Equal(t, 1.0, value(t, sol, compiler.VarXMode, t0, "site", "plant", "efficient"))
	assert.Equal(t, 0.0, value(t, sol, compiler.VarXMode, t0, "site", "plant", "wasteful"))
}

func TestCompile_FailureRateDerates(t *testing.T) {
	s := scenariotest.SingleSite(20, 15)
	s.Processes[0].FailureRate = 0.5

	// 0.5 * 20 = 10 < 15
	sol := solve(t, s)
	assert.Equal(t, problem.StatusInfeasible, sol.Status)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts compiler.Options
		s    *scenario.Scenario
		code apperror.ErrorCode
	}{
		{"nil scenario", compiler.DefaultOptions(), nil, apperror.CodeNilInput},
		{"zero big-M", compiler.Options{}, scenariotest.SingleSite(20, 15), apperror.CodeInvalidArgument},
		{
			name: "network finer than scheduling",
			opts: compiler.DefaultOptions(),
			s: func() *scenario.Scenario {
				s := scenariotest.Seasonal()
				s.Levels.Network = 1
				s.Levels.Scheduling = 0
				s.Levels.Demand = 0
				return s
			}(),
			code: apperror.CodeInvalidScaleLevel,
		},
		{
			name: "uncertainty without penalty",
			opts: compiler.DefaultOptions(),
			s: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Objective = scenario.ObjectiveUncertaintyCost
				return s
			}(),
			code: apperror.CodeInvalidObjective,
		},
		{
			name: "undeclared process",
			opts: compiler.DefaultOptions(),
			s: func() *scenario.Scenario {
				s := scenariotest.SingleSite(20, 15)
				s.Locations[0].Processes = append(s.Locations[0].Processes, "ghost")
				return s
			}(),
			code: apperror.CodeInconsistentTopology,
		},
		{
			name: "capacity factor finer than scheduling",
			opts: compiler.DefaultOptions(),
			s: func() *scenario.Scenario {
				s := scenariotest.Seasonal()
				s.Levels.Scheduling = 0
				s.Levels.Demand = 0
				return s
			}(),
			code: apperror.CodeInvalidAggregationDirection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.New(tt.opts).Compile(context.Background(), tt.s)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestCompile_ProblemIsImmutable(t *testing.T) {
	c := compile(t, scenariotest.SingleSite(20, 15))
	_, err := c.Problem.AddVariable(problem.K("extra", t0), problem.NonNegativeReal)
	assert.Error(t, err)
}
