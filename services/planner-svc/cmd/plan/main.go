// Command plan решает сценарий из файла без запуска сервиса.
//
//	go run ./services/planner-svc/cmd/plan -scenario scenario.yaml -solve
//	go run ./services/planner-svc/cmd/plan -scenario scenario.yaml -lp model.lp
//	go run ./services/planner-svc/cmd/plan -scenario scenario.yaml -solve -report plan.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"energia/pkg/apperror"
	"energia/pkg/compiler"
	"energia/pkg/logger"
	"energia/pkg/scenario"
	"energia/pkg/solver"
	"energia/services/planner-svc/internal/loader"
	"energia/services/planner-svc/internal/repository"
	"energia/services/planner-svc/internal/service"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "path to scenario file (yaml or json)")
		lpPath       = flag.String("lp", "", "write the compiled model in CPLEX LP format")
		solve        = flag.Bool("solve", false, "solve the scenario and print nonzero values")
		reportPath   = flag.String("report", "", "write a report of the run (.xlsx or .pdf), implies -solve")
		relax        = flag.Bool("relax", false, "solve the linear relaxation")
		maxNodes     = flag.Int("max-nodes", 0, "branch-and-bound node limit")
		timeout      = flag.Duration("timeout", time.Minute, "solve time limit")
		demandSign   = flag.String("demand-sign", "", "override demand constraint sense: geq, leq or eq")
		logLevel     = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logger.Init(*logLevel)

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: plan -scenario FILE [-lp FILE] [-solve] [-report FILE]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	s, err := loader.LoadFile(*scenarioPath)
	if err != nil {
		fail(err)
	}

	copts := compiler.DefaultOptions()
	copts.DemandSign = scenario.DemandSign(*demandSign)
	sopts := solver.DefaultOptions()
	planner := service.New(service.Options{
		Compiler: copts,
		Solver:   *sopts,
	}, repository.NewMemoryRunRepository(), nil)

	ctx := context.Background()

	res, err := planner.Compile(ctx, s)
	if err != nil {
		fail(err)
	}
	fmt.Printf("scenario %s (%s), objective %s\n", res.Scenario, res.ScenarioHash, res.Objective)
	fmt.Printf("variables %d (binary %d), constraints %d, compiled in %.1f ms\n",
		res.Stats.Variables, res.Stats.Binaries, res.Stats.Constraints, res.DurationMs)

	if *lpPath != "" {
		f, err := os.Create(*lpPath)
		if err != nil {
			fail(err)
		}
		if err := planner.ExportLP(ctx, s, f); err != nil {
			_ = f.Close()
			fail(err)
		}
		if err := f.Close(); err != nil {
			fail(err)
		}
		fmt.Printf("model written to %s\n", *lpPath)
	}

	if !*solve && *reportPath == "" {
		return
	}

	ov := service.SolveOverrides{Timeout: timeout, NoCache: true}
	if *relax {
		ov.Relax = relax
	}
	if *maxNodes > 0 {
		ov.MaxNodes = maxNodes
	}

	run, err := planner.Solve(ctx, s, ov)
	if err != nil {
		fail(err)
	}
	printRun(run)

	if *reportPath != "" {
		format := strings.TrimPrefix(filepath.Ext(*reportPath), ".")
		rep, err := planner.Report(ctx, run.ID, format)
		if err != nil {
			fail(err)
		}
		if err := os.WriteFile(*reportPath, rep.Data, 0o644); err != nil {
			fail(err)
		}
		fmt.Printf("report written to %s\n", *reportPath)
	}
}

func printRun(run *repository.Run) {
	fmt.Printf("\nstatus %s, nodes %d, solved in %.1f ms\n", run.Status, run.Nodes, run.SolveMs)
	if run.Message != "" {
		fmt.Println(run.Message)
	}
	if run.ObjectiveValue == nil {
		return
	}
	fmt.Printf("objective %g\n\n", *run.ObjectiveValue)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tVARIABLE\tVALUE")
	for _, v := range run.Values {
		fmt.Fprintf(tw, "%s\t%s\t%g\n", v.Category, v.Key, v.Value)
	}
	_ = tw.Flush()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error [%s]: %v\n", apperror.Code(err), err)
	os.Exit(1)
}
