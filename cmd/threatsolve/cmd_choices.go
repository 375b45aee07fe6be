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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver/config"
	"github.com/AleutianAI/AleutianSolver/services/solver/network"
	"github.com/AleutianAI/AleutianSolver/services/solver/scenario"
	"github.com/AleutianAI/AleutianSolver/services/solver/threat"
	"github.com/spf13/cobra"
)

// candidates initializes a decision point for one instant without
// executing it, so its ordered choices can be inspected.
func candidates(ctx context.Context, cfg config.Config, scen *scenario.Scenario, key int64, logger *slog.Logger) (*threat.DecisionPoint, error) {
	inst, ok := scen.Instant(key)
	if !ok {
		return nil, fmt.Errorf("%w: no flawed instant with key %d", scenario.ErrInvalidScenario, key)
	}
	dp, err := threat.New(network.NewMemory(logger), inst, cfg.ThreatAttributes(), scen.Explanation(key), threat.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := dp.Initialize(ctx, inst); err != nil {
		return nil, err
	}
	return dp, nil
}

func runChoices(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	scen, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	dp, err := candidates(ctx, cfg, scen, instantKey, logs.Slog())
	if err != nil {
		return err
	}

	p := newPrinter(cmd)
	p.Title(fmt.Sprintf("Instant %d", instantKey))
	opts := dp.Options()
	p.Field("filter", opts.Filter)
	p.Field("order", opts.Order)
	p.Field("iterate", opts.Iterate)
	p.Field("constraints", fmt.Sprint(dp.ConstraintKinds()))

	choices := dp.Choices()
	if len(choices) == 0 {
		p.Warning("no candidate survives the filters")
		return nil
	}
	for i, c := range choices {
		p.Item(ux.IconArrow, fmt.Sprintf("%d %s", i+1, c))
	}
	return nil
}
