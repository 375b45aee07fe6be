// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver/config"
	"github.com/AleutianAI/AleutianSolver/services/solver/decision"
	"github.com/AleutianAI/AleutianSolver/services/solver/journal"
	"github.com/AleutianAI/AleutianSolver/services/solver/network"
	"github.com/AleutianAI/AleutianSolver/services/solver/scenario"
	"github.com/AleutianAI/AleutianSolver/services/solver/telemetry"
	"github.com/AleutianAI/AleutianSolver/services/solver/threat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// solveReport is the outcome of one search over a scenario.
type solveReport struct {
	Result   *decision.Result
	Instants int
	Live     []network.Constraint
}

// solve builds one threat decision point per flawed instant and runs the
// backtracking driver with the constraint network's feasibility check.
//
// Inputs:
//   - cfg: Threat handler attributes and the step budget.
//   - scen: The loaded scenario.
//   - observer: Receives driver events. May be nil.
//   - logger: Injected into every component.
//
// Outputs:
//   - *solveReport: Non-nil whenever the driver ran.
//   - error: Configuration, driver or observer failures.
func solve(ctx context.Context, cfg config.Config, scen *scenario.Scenario, observer decision.Observer, logger *slog.Logger) (*solveReport, error) {
	instants := scen.Instants()
	mem := network.NewMemory(logger)
	attrs := cfg.ThreatAttributes()

	factory := func(ctx context.Context, level int) (decision.Point, error) {
		inst := instants[level]
		dp, err := threat.New(mem, inst, attrs, scen.Explanation(inst.Key), threat.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("instant %d: %w", inst.Key, err)
		}
		if err := dp.Initialize(ctx, inst); err != nil {
			return nil, fmt.Errorf("instant %d: %w", inst.Key, err)
		}
		return dp, nil
	}

	opts := []decision.DriverOption{
		decision.WithMaxSteps(cfg.Search.MaxSteps),
		decision.WithLogger(logger),
	}
	if observer != nil {
		opts = append(opts, decision.WithObserver(observer))
	}

	res, err := decision.NewDriver(opts...).Run(ctx, len(instants), factory, mem.Feasible)
	report := &solveReport{Result: res, Instants: len(instants), Live: mem.Live()}
	return report, err
}

func runResolve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if enableTrace {
		cfg.Observability.TracingEnabled = true
	}
	if journalPath != "" {
		cfg.Journal = config.JournalConfig{Enabled: true, Path: journalPath}
	}

	logs, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Slog()

	if cfg.Observability.TracingEnabled {
		tcfg := telemetry.DefaultConfig()
		tcfg.ServiceName = cfg.Logging.Service
		tcfg.TraceExporter = telemetry.ExporterStdout
		tcfg.Writer = os.Stderr
		shutdown, err := telemetry.Init(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	scen, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}

	var observer decision.Observer
	var run *journal.Run
	if cfg.Journal.Enabled {
		j, err := journal.Open(journal.Config{Path: cfg.Journal.Path, InMemory: cfg.Journal.InMemory, Logger: logger})
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		run, err = j.StartRun(ctx, scenarioPath)
		if err != nil {
			return err
		}
		observer = run
	}

	report, solveErr := solve(ctx, cfg, scen, observer, logger)

	p := newPrinter(cmd)
	if report != nil {
		printReport(p, report)
	}
	if run != nil {
		p.Field("run", run.ID())
	}
	if showMetrics && cfg.Observability.MetricsEnabled {
		lines, err := metricLines(prometheus.DefaultGatherer, "solver_threat_")
		if err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
		p.Box("metrics", lines)
	}

	if solveErr != nil {
		if errors.Is(solveErr, decision.ErrStepBudget) {
			p.Warning(fmt.Sprintf("step budget of %d exhausted", cfg.Search.MaxSteps))
		}
		return solveErr
	}
	return nil
}

func printReport(p *ux.Printer, r *solveReport) {
	p.Title("Resource threat resolution")
	p.Field("instants", r.Instants)
	p.Field("steps", r.Result.Steps)
	p.Field("backtracks", r.Result.Backtracks)

	if !r.Result.Solved {
		p.Error("no ordering resolves every flawed instant")
		return
	}
	p.Success("all flawed instants resolved")
	p.Box("decisions", r.Result.Decisions())
	for _, c := range r.Live {
		p.Item(ux.IconArrow, c.String())
	}
}

// metricLines renders the counters and histograms whose names start with
// prefix, one "name{labels} value" line each, sorted.
func metricLines(g prometheus.Gatherer, prefix string) ([]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		for _, m := range mf.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
			}
			labels := ""
			if len(pairs) > 0 {
				labels = "{" + strings.Join(pairs, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", name, labels, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s%s count=%d sum=%g", name, labels, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	return lines, nil
}
