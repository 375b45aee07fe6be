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
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver/config"
	"github.com/AleutianAI/AleutianSolver/services/solver/decision"
	"github.com/AleutianAI/AleutianSolver/services/solver/journal"
	"github.com/AleutianAI/AleutianSolver/services/solver/scenario"
	"github.com/AleutianAI/AleutianSolver/services/solver/threat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batteryScenario = "../../services/solver/scenario/testdata/battery.yaml"

// Level 0 is satisfiable. Level 1 only offers b before a, which the
// bounds rule out, so the search backtracks and fails.
const deadEndScenario = `
resources:
  - name: dock
transactions:
  - {name: a, key: 1, bounds: {lower: 0,  upper: 5}}
  - {name: b, key: 2, bounds: {lower: 10, upper: 20}}
instants:
  - key: 1
    resource: dock
    time: 1
    upper_level_flaw: true
    choices:
      - {predecessor: a, successor: b}
  - key: 2
    resource: dock
    time: 2
    upper_level_flaw: true
    choices:
      - {predecessor: b, successor: a}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSolve_Battery(t *testing.T) {
	scen, err := scenario.Load(batteryScenario)
	require.NoError(t, err)

	report, err := solve(context.Background(), config.Default(), scen, nil, quietLogger())
	require.NoError(t, err)

	assert.True(t, report.Result.Solved)
	assert.Equal(t, 3, report.Instants)
	assert.Equal(t, 3, report.Result.Steps)
	assert.Equal(t, 0, report.Result.Backtracks)
	assert.Len(t, report.Live, 3)
	assert.Len(t, report.Result.Decisions(), 3)
}

func TestSolve_DeadEndBacktracksAndJournals(t *testing.T) {
	ctx := context.Background()
	scen, err := scenario.Parse([]byte(deadEndScenario))
	require.NoError(t, err)

	j, err := journal.Open(journal.Config{InMemory: true, Logger: quietLogger()})
	require.NoError(t, err)
	defer j.Close()
	run, err := j.StartRun(ctx, "dead-end")
	require.NoError(t, err)

	report, err := solve(ctx, config.Default(), scen, run, quietLogger())
	require.NoError(t, err)

	assert.False(t, report.Result.Solved)
	assert.Equal(t, 2, report.Result.Steps)
	assert.Equal(t, 1, report.Result.Backtracks)
	assert.Empty(t, report.Live)

	records, err := j.Events(ctx, run.ID())
	require.NoError(t, err)
	kinds := make([]decision.EventKind, 0, len(records))
	levels := make([]int, 0, len(records))
	for _, rec := range records {
		kinds = append(kinds, rec.Kind)
		levels = append(levels, rec.Level)
	}
	assert.Equal(t, []decision.EventKind{
		decision.EventExecute, decision.EventExecute, decision.EventUndo, decision.EventUndo,
	}, kinds)
	assert.Equal(t, []int{0, 1, 1, 0}, levels)
}

func TestSolve_StepBudget(t *testing.T) {
	scen, err := scenario.Parse([]byte(deadEndScenario))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Search.MaxSteps = 1
	report, err := solve(context.Background(), cfg, scen, nil, quietLogger())
	assert.ErrorIs(t, err, decision.ErrStepBudget)
	require.NotNil(t, report)
	assert.False(t, report.Result.Solved)
}

func TestCandidates_ContributionFilterOnPlainResource(t *testing.T) {
	scen, err := scenario.Load(batteryScenario)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ThreatHandler.Filter = "both"
	_, err = candidates(context.Background(), cfg, scen, 300, quietLogger())
	assert.ErrorIs(t, err, threat.ErrInvalidConfig)
}

func TestCandidates(t *testing.T) {
	scen, err := scenario.Load(batteryScenario)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ThreatHandler.Filter = "both"
	dp, err := candidates(context.Background(), cfg, scen, 100, quietLogger())
	require.NoError(t, err)

	choices := dp.Choices()
	require.Len(t, choices, 1)
	assert.Equal(t, "charge", choices[0].Predecessor.Name)
	assert.Equal(t, "drain", choices[0].Successor.Name)

	_, err = candidates(context.Background(), cfg, scen, 999, quietLogger())
	assert.ErrorIs(t, err, scenario.ErrInvalidScenario)
}

func TestPrintReport_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := ux.NewPrinter(&buf, ux.ModeMachine)

	printReport(p, &solveReport{Result: &decision.Result{Steps: 2, Backtracks: 1}, Instants: 2})

	assert.Equal(t, "instants=2\n"+
		"steps=2\n"+
		"backtracks=1\n"+
		"ERROR: no ordering resolves every flawed instant\n", buf.String())
}

func TestMetricLines(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_threat_constraints_total",
		Help: "test",
	}, []string{"kind", "op"})
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "solver_threat_candidates",
		Help: "test",
	})
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total", Help: "test"})
	reg.MustRegister(counter, hist, other)

	counter.WithLabelValues("precedes", "created").Inc()
	hist.Observe(2)
	other.Inc()

	lines, err := metricLines(reg, "solver_threat_")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"solver_threat_candidates count=1 sum=2",
		"solver_threat_constraints_total{kind=precedes,op=created} 1",
	}, lines)
}

func TestFormatRecord(t *testing.T) {
	rec := journal.Record{Seq: 3, Step: 2, Level: 1, Kind: decision.EventUndo, Decision: "INS(5) on battery {a < b}"}
	assert.Equal(t, "#3 step=2 level=1 undo INS(5) on battery {a < b}", formatRecord(rec))
}
