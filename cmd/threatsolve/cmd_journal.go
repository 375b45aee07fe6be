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
	"time"

	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver/decision"
	"github.com/AleutianAI/AleutianSolver/services/solver/journal"
	"github.com/spf13/cobra"
)

func runJournal(cmd *cobra.Command, _ []string) error {
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

	j, err := journal.Open(journal.Config{Path: journalPath, Logger: logs.Slog()})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	p := newPrinter(cmd)
	if runID == "" {
		return listRuns(ctx, p, j)
	}
	return replayRun(ctx, p, j, runID)
}

func listRuns(ctx context.Context, p *ux.Printer, j *journal.Journal) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return err
	}
	p.Title("Runs")
	if len(runs) == 0 {
		p.Warning("journal is empty")
		return nil
	}
	for _, r := range runs {
		p.Item(ux.IconArrow, fmt.Sprintf("%s %s %s", r.ID, r.StartedAt.Format(time.RFC3339), r.Scenario))
	}
	return nil
}

func replayRun(ctx context.Context, p *ux.Printer, j *journal.Journal, id string) error {
	info, err := j.Lookup(ctx, id)
	if err != nil {
		return err
	}
	records, err := j.Events(ctx, id)
	if err != nil {
		return err
	}

	p.Title("Run " + info.ID)
	p.Field("scenario", info.Scenario)
	p.Field("events", len(records))
	for _, rec := range records {
		icon := ux.IconArrow
		if rec.Kind == decision.EventUndo {
			icon = ux.IconUndo
		}
		p.Item(icon, formatRecord(rec))
	}
	return nil
}

func formatRecord(rec journal.Record) string {
	return fmt.Sprintf("#%d step=%d level=%d %s %s", rec.Seq, rec.Step, rec.Level, rec.Kind, rec.Decision)
}
