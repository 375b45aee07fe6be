// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package network provides an in-memory constraint client. It records the
// temporal constraints posted by decision points and answers a per
// constraint bounds feasibility check. It does not propagate.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
	"github.com/google/uuid"
)

// Package-level error definitions.
var (
	// ErrUnknownConstraint is returned when deleting a handle that is not live.
	ErrUnknownConstraint = errors.New("unknown constraint")

	// ErrInvalidScope is returned for a scope without exactly two timepoints.
	ErrInvalidScope = errors.New("constraint scope must have two timepoints")

	// ErrUnknownKind is returned for a kind other than precedes or concurrent.
	ErrUnknownKind = errors.New("unknown constraint kind")
)

// Constraint is a live constraint.
type Constraint struct {
	ID    resource.ConstraintID
	Kind  resource.ConstraintKind
	First *resource.Timepoint
	Then  *resource.Timepoint
}

// Satisfiable reports whether the scope's current bounds admit the
// relation.
func (c Constraint) Satisfiable() bool {
	switch c.Kind {
	case resource.Precedes:
		return c.First.Bounds.Lower <= c.Then.Bounds.Upper
	case resource.Concurrent:
		return c.First.Bounds.Overlaps(c.Then.Bounds)
	default:
		return false
	}
}

// String renders the constraint for logs.
func (c Constraint) String() string {
	return fmt.Sprintf("%s(%d %s, %d %s)", c.Kind, c.First.Key, c.First.Bounds, c.Then.Key, c.Then.Bounds)
}

// Memory is an in-memory resource.ConstraintClient.
//
// Thread Safety: Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	live    map[resource.ConstraintID]Constraint
	order   []resource.ConstraintID
	logger  *slog.Logger
	created int
}

// NewMemory creates an empty network. Nil logger uses slog.Default().
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		live:   make(map[resource.ConstraintID]Constraint),
		logger: logger.With(slog.String("component", "constraint_network")),
	}
}

// CreateConstraint records a constraint and returns its handle.
//
// Inputs:
//   - ctx: Checked for cancellation.
//   - kind: resource.Precedes or resource.Concurrent.
//   - scope: Exactly two timepoints, first then second.
//
// Outputs:
//   - resource.ConstraintID: A fresh UUID handle.
//   - error: ErrInvalidScope, ErrUnknownKind or ctx.Err().
func (m *Memory) CreateConstraint(ctx context.Context, kind resource.ConstraintKind, scope []*resource.Timepoint) (resource.ConstraintID, error) {
	if err := ctx.Err(); err != nil {
		return resource.NoConstraint, err
	}
	if len(scope) != 2 || scope[0] == nil || scope[1] == nil {
		return resource.NoConstraint, fmt.Errorf("%w: got %d", ErrInvalidScope, len(scope))
	}
	if kind != resource.Precedes && kind != resource.Concurrent {
		return resource.NoConstraint, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	c := Constraint{
		ID:    resource.ConstraintID(uuid.NewString()),
		Kind:  kind,
		First: scope[0],
		Then:  scope[1],
	}

	m.mu.Lock()
	m.live[c.ID] = c
	m.order = append(m.order, c.ID)
	m.created++
	m.mu.Unlock()

	m.logger.Debug("constraint created",
		slog.String("constraint_id", string(c.ID)),
		slog.String("constraint", c.String()),
	)
	return c.ID, nil
}

// DeleteConstraint removes a live constraint.
//
// Outputs:
//   - error: ErrUnknownConstraint or ctx.Err().
func (m *Memory) DeleteConstraint(ctx context.Context, id resource.ConstraintID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConstraint, id)
	}
	delete(m.live, id)
	m.order = slices.DeleteFunc(m.order, func(other resource.ConstraintID) bool { return other == id })

	m.logger.Debug("constraint deleted", slog.String("constraint_id", string(id)))
	return nil
}

// Live returns the live constraints in creation order.
func (m *Memory) Live() []Constraint {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Constraint, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.live[id])
	}
	return out
}

// Created returns how many constraints were ever created.
func (m *Memory) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Feasible reports whether every live constraint is satisfiable by its
// scope's bounds. It matches decision.Checker.
func (m *Memory) Feasible(context.Context) (bool, error) {
	for _, c := range m.Live() {
		if !c.Satisfiable() {
			m.logger.Debug("constraint unsatisfiable", slog.String("constraint", c.String()))
			return false, nil
		}
	}
	return true, nil
}
