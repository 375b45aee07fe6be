// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resource defines the read-only resource model consumed by the
// solver: transactions, instants, ordering choices, the profile query
// interfaces and the constraint mutation client.
//
// Nothing in this package computes resource levels. Implementations live
// elsewhere (see services/solver/scenario for a fixture-backed one).
package resource

import (
	"context"
	"fmt"
)

// -----------------------------------------------------------------------------
// Temporal values
// -----------------------------------------------------------------------------

// Interval is a closed temporal bound [Lower, Upper].
type Interval struct {
	Lower int64 `json:"lower" yaml:"lower"`
	Upper int64 `json:"upper" yaml:"upper"`
}

// Width returns Upper - Lower.
func (i Interval) Width() int64 {
	return i.Upper - i.Lower
}

// Overlaps reports whether the two intervals share at least one point.
func (i Interval) Overlaps(o Interval) bool {
	return i.Lower <= o.Upper && o.Lower <= i.Upper
}

// String renders the interval as "[lb ub]".
func (i Interval) String() string {
	return fmt.Sprintf("[%d %d]", i.Lower, i.Upper)
}

// Timepoint is the time variable of a transaction.
//
// Key is globally unique and monotonic in creation order. It is the
// stable ordering key used by the choice tie-break.
type Timepoint struct {
	Key    int64
	Bounds Interval
}

// -----------------------------------------------------------------------------
// Transactions and choices
// -----------------------------------------------------------------------------

// Transaction is a production or consumption event on a resource.
//
// Transactions are immutable for the lifetime of any decision point that
// references them.
type Transaction struct {
	Name     string
	Time     *Timepoint
	Consumer bool
	Quantity float64
}

// IsConsumer reports whether the transaction consumes from the resource.
func (t *Transaction) IsConsumer() bool {
	return t.Consumer
}

// Key returns the ordering key of the transaction's timepoint.
func (t *Transaction) Key() int64 {
	return t.Time.Key
}

// Bounds returns the temporal bounds of the transaction's timepoint.
func (t *Transaction) Bounds() Interval {
	return t.Time.Bounds
}

// String renders the transaction for traces.
func (t *Transaction) String() string {
	kind := "producer"
	if t.Consumer {
		kind = "consumer"
	}
	return fmt.Sprintf("%s(%d) %s %s", t.Name, t.Time.Key, kind, t.Time.Bounds)
}

// Choice is a candidate ordering between two transactions.
//
// The predecessor is proposed to end before (or be concurrent with) the
// successor.
type Choice struct {
	Predecessor *Transaction
	Successor   *Transaction
}

// String renders the choice as "<pred *** succ>".
func (c Choice) String() string {
	return fmt.Sprintf("<%s *** %s>", c.Predecessor, c.Successor)
}

// -----------------------------------------------------------------------------
// Instants and profiles
// -----------------------------------------------------------------------------

// Instant is a point in time on a resource profile, possibly flawed at its
// lower and/or upper capacity bound.
type Instant struct {
	Key                int64
	Time               int64
	Profile            Profile
	LowerLevelFlaw     bool
	UpperLevelFlaw     bool
	LowerFlawMagnitude float64
	UpperFlawMagnitude float64
}

// HasLowerLevelFlaw reports a violation of the lower capacity bound.
func (i *Instant) HasLowerLevelFlaw() bool { return i.LowerLevelFlaw }

// HasUpperLevelFlaw reports a violation of the upper capacity bound.
func (i *Instant) HasUpperLevelFlaw() bool { return i.UpperLevelFlaw }

// IsFlawed reports whether either level is violated.
func (i *Instant) IsFlawed() bool { return i.LowerLevelFlaw || i.UpperLevelFlaw }

// Resource is the owner of a profile.
type Resource interface {
	// Name is the display name used in traces.
	Name() string

	// OrderingChoices returns the transaction pairs whose reordering could
	// resolve the flaw at the instant. The result may contain duplicates.
	OrderingChoices(inst *Instant) []Choice
}

// Profile is the level profile of a resource.
type Profile interface {
	Resource() Resource
}

// FlowProfile is a profile that can answer contribution queries.
type FlowProfile interface {
	Profile

	// EarliestLowerLevelInstant returns the earliest instant at which the
	// transaction contributes to the lower level.
	EarliestLowerLevelInstant(t *Transaction) (*Instant, bool)

	// EarliestUpperLevelInstant returns the earliest instant at which the
	// transaction contributes to the upper level.
	EarliestUpperLevelInstant(t *Transaction) (*Instant, bool)
}

// -----------------------------------------------------------------------------
// Constraint mutation
// -----------------------------------------------------------------------------

// ConstraintKind names a temporal relation between two timepoints.
type ConstraintKind string

const (
	// Precedes is strict ordering: the first timepoint is before the second.
	Precedes ConstraintKind = "precedes"

	// Concurrent is simultaneity of the two timepoints.
	Concurrent ConstraintKind = "concurrent"
)

// ConstraintID identifies a materialized constraint.
type ConstraintID string

// NoConstraint is the invalid handle.
const NoConstraint ConstraintID = ""

// Valid reports whether the handle refers to a constraint.
func (id ConstraintID) Valid() bool {
	return id != NoConstraint
}

// ConstraintClient materializes and destroys constraints in the underlying
// constraint network.
type ConstraintClient interface {
	CreateConstraint(ctx context.Context, kind ConstraintKind, scope []*Timepoint) (ConstraintID, error)
	DeleteConstraint(ctx context.Context, id ConstraintID) error
}
