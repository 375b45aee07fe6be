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
	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
)

// Attributes is the opaque configuration record of a threat handler.
// Keys other than the Option* constants are ignored.
type Attributes map[string]string

// Recognized attribute keys.
const (
	OptionFilter     = "filter"
	OptionOrder      = "order"
	OptionConstraint = "constraint"
	OptionIterate    = "iterate"
	OptionDedup      = "dedup"
)

// -----------------------------------------------------------------------------
// Filter mode
// -----------------------------------------------------------------------------

// FilterMode selects the rejection predicates added before the default
// filter.
type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterPredecessorNot
	FilterSuccessor
	FilterBoth
)

var filterModes = map[string]FilterMode{
	"none":           FilterNone,
	"predecessorNot": FilterPredecessorNot,
	"successor":      FilterSuccessor,
	"both":           FilterBoth,
}

// String returns the configuration token of the mode.
func (m FilterMode) String() string {
	switch m {
	case FilterNone:
		return "none"
	case FilterPredecessorNot:
		return "predecessorNot"
	case FilterSuccessor:
		return "successor"
	case FilterBoth:
		return "both"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Iteration order
// -----------------------------------------------------------------------------

// IterationOrder governs the traversal of the choice × constraint-kind
// product after an undo.
type IterationOrder int

const (
	// PairFirst tries one constraint kind against every choice before
	// moving to the next kind.
	PairFirst IterationOrder = iota

	// ConstraintFirst tries every constraint kind on a choice before
	// moving to the next choice.
	ConstraintFirst
)

// String returns the configuration token of the order.
func (o IterationOrder) String() string {
	if o == ConstraintFirst {
		return "constraintFirst"
	}
	return "pairFirst"
}

// -----------------------------------------------------------------------------
// Dedup mode
// -----------------------------------------------------------------------------

// DedupMode controls whether choices that compare equal under the active
// order are collapsed into one candidate.
type DedupMode int

const (
	// DedupOrdering keeps only the first of each run of equal choices.
	DedupOrdering DedupMode = iota

	// DedupNone keeps every filtered choice.
	DedupNone
)

// String returns the configuration token of the mode.
func (m DedupMode) String() string {
	if m == DedupNone {
		return "none"
	}
	return "ordering"
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Options is the parsed form of Attributes.
type Options struct {
	Filter      FilterMode
	Order       Order
	Constraints []resource.ConstraintKind
	Iterate     IterationOrder
	Dedup       DedupMode
}

// ParseOptions validates a handler configuration record.
//
// Description:
//
//	Missing keys take their defaults: filter=none, order=(tie-break only),
//	constraint=precedesOnly, iterate=pairFirst, dedup=ordering. Any
//	present value outside the recognized tokens is rejected.
//
// Inputs:
//   - attrs: The configuration record. May be nil.
//
// Outputs:
//   - Options: The parsed options.
//   - error: A *ConfigError wrapping ErrInvalidConfig.
func ParseOptions(attrs Attributes) (Options, error) {
	opts := Options{
		Filter:      FilterNone,
		Constraints: []resource.ConstraintKind{resource.Precedes},
		Iterate:     PairFirst,
		Dedup:       DedupOrdering,
	}

	if v, ok := attrs[OptionFilter]; ok {
		mode, known := filterModes[v]
		if !known {
			return Options{}, &ConfigError{Option: OptionFilter, Value: v, Reason: "expected none, predecessorNot, successor or both"}
		}
		opts.Filter = mode
	}

	order, err := ParseOrder(attrs[OptionOrder])
	if err != nil {
		return Options{}, err
	}
	opts.Order = order

	if v, ok := attrs[OptionConstraint]; ok {
		kinds, err := parseConstraintKinds(v)
		if err != nil {
			return Options{}, err
		}
		opts.Constraints = kinds
	}

	if v, ok := attrs[OptionIterate]; ok {
		switch v {
		case "pairFirst":
			opts.Iterate = PairFirst
		case "constraintFirst":
			opts.Iterate = ConstraintFirst
		default:
			return Options{}, &ConfigError{Option: OptionIterate, Value: v, Reason: "expected pairFirst or constraintFirst"}
		}
	}

	if v, ok := attrs[OptionDedup]; ok {
		switch v {
		case "ordering":
			opts.Dedup = DedupOrdering
		case "none":
			opts.Dedup = DedupNone
		default:
			return Options{}, &ConfigError{Option: OptionDedup, Value: v, Reason: "expected ordering or none"}
		}
	}

	return opts, nil
}

func parseConstraintKinds(v string) ([]resource.ConstraintKind, error) {
	switch v {
	case "precedesOnly":
		return []resource.ConstraintKind{resource.Precedes}, nil
	case "precedesFirst":
		return []resource.ConstraintKind{resource.Precedes, resource.Concurrent}, nil
	case "concurrentOnly":
		return []resource.ConstraintKind{resource.Concurrent}, nil
	case "concurrentFirst":
		return []resource.ConstraintKind{resource.Concurrent, resource.Precedes}, nil
	default:
		return nil, &ConfigError{
			Option: OptionConstraint,
			Value:  v,
			Reason: "expected precedesOnly, precedesFirst, concurrentOnly or concurrentFirst",
		}
	}
}
