// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decision provides the decision-point contract shared by solver
// components and a chronological backtracking driver that consumes it.
//
// Lifecycle of a decision point as seen by the driver:
//
//	construct ─▶ initialize ─▶ ┌──────────────┐
//	                           │  Unexecuted  │◀─────────┐
//	                           └──────┬───────┘          │
//	                                  │ Execute          │ Undo (advances)
//	                                  ▼                  │
//	                           ┌──────────────┐          │
//	                           │   Executed   │──────────┘
//	                           └──────────────┘
//
// A point with HasNext() == false and nothing executed is exhausted.
package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Package-level error definitions.
var (
	// ErrAlreadyInitialized is returned when Initialize runs a second time.
	ErrAlreadyInitialized = errors.New("decision point already initialized")

	// ErrNotInitialized is returned when a point is used before Initialize.
	ErrNotInitialized = errors.New("decision point not initialized")
)

// Point is the contract a search driver uses to walk a decision point.
//
// Thread Safety: Implementations are driven by a single goroutine.
type Point interface {
	// ID is unique per decision point instance.
	ID() string

	// HasNext reports whether another candidate remains.
	HasNext() bool

	// Execute applies the current candidate.
	Execute(ctx context.Context) error

	// Undo retracts the applied candidate and advances to the next one.
	Undo(ctx context.Context) error

	// CanUndo reports whether Undo may be called.
	CanUndo() bool

	// String renders the point for traces.
	String() string
}

// Base carries the bookkeeping shared by every decision point.
//
// Description:
//
//	Embed Base in a concrete decision point. The concrete type calls
//	MarkInitialized from its initialize step and MarkExecuted/MarkUndone
//	around its execute/undo handlers. CanUndo on Base is the base search
//	precondition; concrete types may add their own conditions.
type Base struct {
	id          string
	entityKey   int64
	explanation string
	initialized bool
	executed    bool
}

// NewBase creates the bookkeeping for a decision point over an entity.
//
// Inputs:
//   - entityKey: Key of the flaw entity the point resolves.
//   - explanation: Why the point was raised (e.g. "lowerLevelFlaw").
//
// Outputs:
//   - Base: Ready to embed.
func NewBase(entityKey int64, explanation string) Base {
	return Base{
		id:          uuid.NewString(),
		entityKey:   entityKey,
		explanation: explanation,
	}
}

// ID returns the unique identifier of this decision point.
func (b *Base) ID() string { return b.id }

// EntityKey returns the key of the flaw entity.
func (b *Base) EntityKey() int64 { return b.entityKey }

// Explanation returns why this decision point was raised.
func (b *Base) Explanation() string { return b.explanation }

// Initialized reports whether MarkInitialized has been called.
func (b *Base) Initialized() bool { return b.initialized }

// Executed reports whether a candidate is currently applied.
func (b *Base) Executed() bool { return b.executed }

// CanUndo is the base precondition for Undo: something is executed.
func (b *Base) CanUndo() bool { return b.executed }

// MarkInitialized records that initialization ran.
//
// Outputs:
//   - error: ErrAlreadyInitialized on the second call.
func (b *Base) MarkInitialized() error {
	if b.initialized {
		return fmt.Errorf("entity %d: %w", b.entityKey, ErrAlreadyInitialized)
	}
	b.initialized = true
	return nil
}

// MarkExecuted records that a candidate was applied.
func (b *Base) MarkExecuted() { b.executed = true }

// MarkUndone records that the applied candidate was retracted.
func (b *Base) MarkUndone() { b.executed = false }
