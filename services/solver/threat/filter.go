// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package threat

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
)

// -----------------------------------------------------------------------------
// Flaw level
// -----------------------------------------------------------------------------

// TreatAsLowerFlaw decides which capacity level a decision point resolves.
//
// Description:
//
//	An instant flawed on both levels is resolved according to the
//	explanation the flaw was selected with ("lowerLevelFlaw" or anything
//	containing "Lower" picks lower; "upperLevelFlaw" or anything
//	containing "Upper" picks upper). Otherwise the larger magnitude wins,
//	ties going to lower. An instant flawed on one level uses that level.
//
// Inputs:
//   - inst: The flawed instant.
//   - explanation: Why the decision point was raised.
//
// Outputs:
//   - bool: true for the lower level.
func TreatAsLowerFlaw(inst *resource.Instant, explanation string) bool {
	if inst.HasLowerLevelFlaw() && inst.HasUpperLevelFlaw() {
		switch {
		case explanation == "lowerLevelFlaw" || strings.Contains(explanation, "Lower"):
			return true
		case explanation == "upperLevelFlaw" || strings.Contains(explanation, "Upper"):
			return false
		default:
			return inst.LowerFlawMagnitude >= inst.UpperFlawMagnitude
		}
	}
	return inst.HasLowerLevelFlaw() && !inst.HasUpperLevelFlaw()
}

// -----------------------------------------------------------------------------
// Filter
// -----------------------------------------------------------------------------

type filterKind int

const (
	defaultFilter filterKind = iota
	predecessorNotContributingFilter
	successorContributingFilter
)

// Filter is one predicate of the pipeline. It keeps only the flawed time
// and flaw level of the instant it was built for.
type Filter struct {
	kind         filterKind
	flow         resource.FlowProfile
	flawTime     int64
	treatAsLower bool
}

// Name identifies the filter in logs.
func (f Filter) Name() string {
	switch f.kind {
	case predecessorNotContributingFilter:
		return "PredecessorNotContributingFilter"
	case successorContributingFilter:
		return "SuccessorContributingFilter"
	default:
		return "DefaultFilter"
	}
}

// TreatsAsLowerFlaw reports the flaw level the filter was built for.
func (f Filter) TreatsAsLowerFlaw() bool {
	return f.treatAsLower
}

func (f Filter) accepts(c resource.Choice, logger *slog.Logger) bool {
	switch f.kind {
	case predecessorNotContributingFilter:
		return f.predecessorNotContributing(c, logger)
	case successorContributingFilter:
		return f.successorContributing(c, logger)
	default:
		return true
	}
}

func (f Filter) predecessorNotContributing(c resource.Choice, logger *slog.Logger) bool {
	pred := c.Predecessor
	if f.treatAsLower && pred.IsConsumer() {
		logger.Debug("predecessor is a consumer under a lower level flaw",
			slog.String("predecessor", pred.Name))
		return false
	}
	if !f.treatAsLower && !pred.IsConsumer() {
		logger.Debug("predecessor is a producer under an upper level flaw",
			slog.String("predecessor", pred.Name))
		return false
	}

	inst, ok := f.earliest(pred)
	if !ok {
		logger.Warn("flow profile has no contributing instant",
			slog.String("transaction", pred.Name))
		return false
	}
	if inst.Time <= f.flawTime {
		logger.Debug("predecessor already contributes at the flawed instant",
			slog.String("predecessor", pred.Name),
			slog.Int64("contributes_at", inst.Time),
			slog.Int64("flaw_time", f.flawTime))
		return false
	}
	return true
}

func (f Filter) successorContributing(c resource.Choice, logger *slog.Logger) bool {
	succ := c.Successor
	if f.treatAsLower && !succ.IsConsumer() {
		logger.Debug("successor is a producer under a lower level flaw",
			slog.String("successor", succ.Name))
		return false
	}
	if !f.treatAsLower && succ.IsConsumer() {
		logger.Debug("successor is a consumer under an upper level flaw",
			slog.String("successor", succ.Name))
		return false
	}

	inst, ok := f.earliest(succ)
	if !ok {
		logger.Warn("flow profile has no contributing instant",
			slog.String("transaction", succ.Name))
		return false
	}
	if inst.Time > f.flawTime {
		logger.Debug("successor does not contribute at the flawed instant",
			slog.String("successor", succ.Name),
			slog.Int64("contributes_at", inst.Time),
			slog.Int64("flaw_time", f.flawTime))
		return false
	}
	return true
}

func (f Filter) earliest(t *resource.Transaction) (*resource.Instant, bool) {
	var (
		inst *resource.Instant
		ok   bool
	)
	if f.treatAsLower {
		inst, ok = f.flow.EarliestLowerLevelInstant(t)
	} else {
		inst, ok = f.flow.EarliestUpperLevelInstant(t)
	}
	return inst, ok && inst != nil
}

// -----------------------------------------------------------------------------
// Pipeline
// -----------------------------------------------------------------------------

// Filters is the ordered conjunction of filters applied to raw choices.
type Filters struct {
	filters []Filter
	logger  *slog.Logger
}

// NewFilters builds the pipeline selected by mode.
//
// Description:
//
//	The successor filter comes first, then the predecessor filter, then
//	the default filter. Contribution filters need a flow profile.
//
// Inputs:
//   - mode: The configured filter mode.
//   - profile: The flawed instant's profile.
//   - explanation: Why the decision point was raised.
//   - inst: The flawed instant. Not retained.
//   - logger: Logger for rejections. Nil uses slog.Default().
//
// Outputs:
//   - *Filters: The pipeline.
//   - error: A *ConfigError if a contribution filter meets a non-flow profile.
func NewFilters(mode FilterMode, profile resource.Profile, explanation string, inst *resource.Instant, logger *slog.Logger) (*Filters, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := Filter{
		kind:         defaultFilter,
		flawTime:     inst.Time,
		treatAsLower: TreatAsLowerFlaw(inst, explanation),
	}

	var filters []Filter
	if mode == FilterSuccessor || mode == FilterBoth {
		f, err := contributionFilter(base, successorContributingFilter, profile)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if mode == FilterPredecessorNot || mode == FilterBoth {
		f, err := contributionFilter(base, predecessorNotContributingFilter, profile)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	filters = append(filters, base)

	return &Filters{filters: filters, logger: logger}, nil
}

func contributionFilter(base Filter, kind filterKind, profile resource.Profile) (Filter, error) {
	base.kind = kind
	flow, ok := profile.(resource.FlowProfile)
	if !ok {
		return Filter{}, &ConfigError{
			Option: OptionFilter,
			Reason: "cannot create " + base.Name() + " for a profile that is not a flow profile",
		}
	}
	base.flow = flow
	return base, nil
}

// Accepts reports whether every filter accepts the choice. Evaluation
// stops at the first rejection.
func (fs *Filters) Accepts(c resource.Choice) bool {
	for _, f := range fs.filters {
		if !f.accepts(c, fs.logger) {
			fs.logger.Debug("choice filtered out",
				slog.String("choice", c.String()),
				slog.String("filter", f.Name()))
			return false
		}
	}
	return true
}

// Names lists the filters in evaluation order.
func (fs *Filters) Names() []string {
	names := make([]string, len(fs.filters))
	for i, f := range fs.filters {
		names[i] = f.Name()
	}
	return names
}
