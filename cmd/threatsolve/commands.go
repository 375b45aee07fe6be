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
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianSolver/pkg/logging"
	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver/config"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath   string
	outputMode   string
	scenarioPath string
	journalPath  string
	enableTrace  bool
	showMetrics  bool
	instantKey   int64
	runID        string

	rootCmd = &cobra.Command{
		Use:          "threatsolve",
		Short:        "Resolve resource threats by ordering transactions",
		SilenceUsage: true,
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Search for an ordering that resolves every flawed instant in a scenario",
		RunE:  runResolve, // Defined in cmd_resolve.go
	}

	choicesCmd = &cobra.Command{
		Use:   "choices",
		Short: "Print the filtered, ordered candidates of one flawed instant",
		RunE:  runChoices, // Defined in cmd_choices.go
	}

	journalCmd = &cobra.Command{
		Use:   "journal",
		Short: "List recorded runs or replay the decisions of one run",
		RunE:  runJournal, // Defined in cmd_journal.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Solver config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "", "Output mode: styled or machine (default: detect terminal)")

	resolveCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario file")
	resolveCmd.Flags().StringVar(&journalPath, "journal", "", "Record the search in a journal at this directory")
	resolveCmd.Flags().BoolVar(&enableTrace, "trace", false, "Write OpenTelemetry spans to stderr")
	resolveCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print threat handler metrics after the search")
	_ = resolveCmd.MarkFlagRequired("scenario")

	choicesCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario file")
	choicesCmd.Flags().Int64Var(&instantKey, "instant", 0, "Key of the flawed instant")
	_ = choicesCmd.MarkFlagRequired("scenario")
	_ = choicesCmd.MarkFlagRequired("instant")

	journalCmd.Flags().StringVar(&journalPath, "path", "", "Journal directory")
	journalCmd.Flags().StringVar(&runID, "run", "", "Replay this run instead of listing runs")
	_ = journalCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(resolveCmd, choicesCmd, journalCmd)
}

// loadConfig loads --config with env overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr as JSON when
// stderr is not a terminal.
func newLogger(cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Logging.JSON || ux.DetectMode(os.Stderr) == ux.ModeMachine,
		Service: cfg.Logging.Service,
		LogDir:  cfg.Logging.LogDir,
	})
}

// newPrinter writes to the command's stdout.
func newPrinter(cmd *cobra.Command) *ux.Printer {
	mode := ux.DetectMode(os.Stdout)
	if outputMode != "" {
		mode = ux.ParseMode(outputMode)
	}
	return ux.NewPrinter(cmd.OutOrStdout(), mode)
}
