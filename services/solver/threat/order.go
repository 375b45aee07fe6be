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
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
)

// TieBreak is appended to every configured order. With unique timepoint
// keys it discriminates any two distinct pairs.
const TieBreak = "ascendingKeyPredecessor,ascendingKeySuccessor"

// LeastImpactKey is the order token of the whole-pair comparator.
const LeastImpactKey = "leastImpact"

// -----------------------------------------------------------------------------
// Criteria
// -----------------------------------------------------------------------------

// Criterion is a single-transaction ordering key.
type Criterion int

const (
	// Earliest orders by ascending lower bound.
	Earliest Criterion = iota
	// Latest orders by descending upper bound.
	Latest
	// Longest orders by descending bound width.
	Longest
	// Shortest orders by ascending bound width.
	Shortest
	// AscendingKey orders by ascending timepoint key.
	AscendingKey
	// DescendingKey orders by descending timepoint key.
	DescendingKey
)

var criteria = map[string]Criterion{
	"earliest":      Earliest,
	"latest":        Latest,
	"longest":       Longest,
	"shortest":      Shortest,
	"ascendingKey":  AscendingKey,
	"descendingKey": DescendingKey,
}

// String returns the token prefix of the criterion.
func (c Criterion) String() string {
	switch c {
	case Earliest:
		return "earliest"
	case Latest:
		return "latest"
	case Longest:
		return "longest"
	case Shortest:
		return "shortest"
	case AscendingKey:
		return "ascendingKey"
	case DescendingKey:
		return "descendingKey"
	default:
		return "unknown"
	}
}

func (c Criterion) less(t1, t2 *resource.Transaction) bool {
	switch c {
	case Earliest:
		return t1.Bounds().Lower < t2.Bounds().Lower
	case Latest:
		return t1.Bounds().Upper > t2.Bounds().Upper
	case Longest:
		return t1.Bounds().Width() > t2.Bounds().Width()
	case Shortest:
		return t1.Bounds().Width() < t2.Bounds().Width()
	case AscendingKey:
		return t1.Key() < t2.Key()
	case DescendingKey:
		return t1.Key() > t2.Key()
	default:
		return false
	}
}

// Half selects which transaction of a choice a criterion inspects.
type Half int

const (
	PredecessorHalf Half = iota
	SuccessorHalf
)

// String returns the token suffix of the half.
func (h Half) String() string {
	if h == SuccessorHalf {
		return "Successor"
	}
	return "Predecessor"
}

func (h Half) of(c resource.Choice) *resource.Transaction {
	if h == SuccessorHalf {
		return c.Successor
	}
	return c.Predecessor
}

// -----------------------------------------------------------------------------
// Comparator
// -----------------------------------------------------------------------------

type comparatorKind int

const (
	transactionComparator comparatorKind = iota
	leastImpactComparator
)

// Comparator is one key of a choice order: either a criterion applied to
// one half of each choice, or the least-impact score of the whole pair.
type Comparator struct {
	kind      comparatorKind
	criterion Criterion
	half      Half
}

// ByTransaction builds a comparator applying c to the given half.
func ByTransaction(c Criterion, h Half) Comparator {
	return Comparator{kind: transactionComparator, criterion: c, half: h}
}

// LeastImpact builds the whole-pair comparator preferring pairs whose
// bounds are already closest together.
func LeastImpact() Comparator {
	return Comparator{kind: leastImpactComparator}
}

// String returns the order token of the comparator.
func (c Comparator) String() string {
	if c.kind == leastImpactComparator {
		return LeastImpactKey
	}
	return c.criterion.String() + c.half.String()
}

// Less reports whether a sorts strictly before b under this key alone.
func (c Comparator) Less(a, b resource.Choice) bool {
	if c.kind == leastImpactComparator {
		return impact(a) < impact(b)
	}
	return c.criterion.less(c.half.of(a), c.half.of(b))
}

// impact is the estimated temporal disruption of ordering the pair.
func impact(c resource.Choice) int64 {
	p, s := c.Predecessor.Bounds(), c.Successor.Bounds()
	return max(clampNonNegative(p.Lower-s.Lower), clampNonNegative(p.Upper-s.Upper))
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// -----------------------------------------------------------------------------
// Order
// -----------------------------------------------------------------------------

// Order is a left-to-right list of comparators. The first comparator that
// distinguishes two choices decides.
type Order []Comparator

// ParseOrder parses a comma-separated order and appends TieBreak.
//
// Inputs:
//   - spec: e.g. "leastImpact,earliestSuccessor". Empty means tie-break only.
//
// Outputs:
//   - Order: The comparators, tie-break last.
//   - error: A *ConfigError wrapping ErrInvalidConfig.
func ParseOrder(spec string) (Order, error) {
	full := TieBreak
	if spec != "" {
		full = spec + "," + TieBreak
	}

	tokens := strings.Split(full, ",")
	order := make(Order, 0, len(tokens))
	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		cmp, err := parseComparator(tok)
		if err != nil {
			return nil, err
		}
		order = append(order, cmp)
	}
	return order, nil
}

func parseComparator(tok string) (Comparator, error) {
	if tok == LeastImpactKey {
		return LeastImpact(), nil
	}

	half := PredecessorHalf
	name, ok := strings.CutSuffix(tok, "Predecessor")
	if !ok {
		half = SuccessorHalf
		name, ok = strings.CutSuffix(tok, "Successor")
	}
	if !ok {
		return Comparator{}, &ConfigError{Option: OptionOrder, Value: tok, Reason: "expected a Predecessor or Successor order"}
	}

	crit, known := criteria[name]
	if !known {
		return Comparator{}, &ConfigError{Option: OptionOrder, Value: tok, Reason: "unknown choice order"}
	}
	return ByTransaction(crit, half), nil
}

// Compare returns -1 if a sorts before b, 1 if after, 0 if no comparator
// distinguishes them.
func (o Order) Compare(a, b resource.Choice) int {
	for _, cmp := range o {
		if cmp.Less(a, b) {
			return -1
		}
		if cmp.Less(b, a) {
			return 1
		}
	}
	return 0
}

// String renders the order as its comma-separated configuration.
func (o Order) String() string {
	names := make([]string, len(o))
	for i, cmp := range o {
		names[i] = cmp.String()
	}
	return strings.Join(names, ",")
}

// Sort returns a stably sorted copy of choices.
func (o Order) Sort(choices []resource.Choice) []resource.Choice {
	sorted := slices.Clone(choices)
	slices.SortStableFunc(sorted, o.Compare)
	return sorted
}

// Collapse drops every choice equal under o to its predecessor in an
// already sorted slice. The first of each equal run survives.
func (o Order) Collapse(sorted []resource.Choice) []resource.Choice {
	return slices.CompactFunc(slices.Clone(sorted), func(a, b resource.Choice) bool {
		return o.Compare(a, b) == 0
	})
}
