// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const driverTracerName = "solver.decision"

// ErrStepBudget is returned when a run exceeds its step budget.
var ErrStepBudget = errors.New("search step budget exhausted")

// -----------------------------------------------------------------------------
// Driver collaborators
// -----------------------------------------------------------------------------

// Factory returns an initialized decision point for a search level.
//
// The driver calls Factory again for a level after it backtracked past it,
// so every call must return a fresh point.
type Factory func(ctx context.Context, level int) (Point, error)

// Checker reports whether the decisions applied so far are acceptable.
type Checker func(ctx context.Context) (bool, error)

// EventKind distinguishes observer events.
type EventKind string

const (
	EventExecute EventKind = "execute"
	EventUndo    EventKind = "undo"
)

// Event describes one execute or undo performed by the driver.
type Event struct {
	Step     int
	Level    int
	Kind     EventKind
	PointID  string
	Decision string
}

// Observer receives driver events in order.
type Observer interface {
	Observe(ctx context.Context, ev Event) error
}

// Result summarizes a driver run.
type Result struct {
	// Solved is true if every level holds an accepted decision.
	Solved bool

	// Points are the executed points, one per level, when Solved.
	Points []Point

	// Steps counts Execute calls.
	Steps int

	// Backtracks counts level retreats.
	Backtracks int
}

// Decisions renders the executed points.
func (r *Result) Decisions() []string {
	out := make([]string, 0, len(r.Points))
	for _, p := range r.Points {
		out = append(out, p.String())
	}
	return out
}

// -----------------------------------------------------------------------------
// Driver
// -----------------------------------------------------------------------------

// Driver walks a stack of decision points with chronological backtracking.
//
// Description:
//
//	Each level owns one decision point. The driver executes the current
//	candidate of the deepest level and asks the Checker whether to go
//	deeper. A rejected candidate is undone, which advances the point to
//	its next candidate. When a point runs out of candidates it is dropped
//	and the previous level is undone, so the search resumes there.
//
// Thread Safety: Not safe for concurrent use. One Run at a time.
type Driver struct {
	maxSteps int
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithMaxSteps bounds the number of Execute calls per run. Zero disables.
func WithMaxSteps(n int) DriverOption {
	return func(d *Driver) { d.maxSteps = n }
}

// WithLogger sets the driver logger.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) DriverOption {
	return func(d *Driver) { d.observer = o }
}

// NewDriver creates a Driver.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		logger: slog.Default(),
		tracer: otel.Tracer(driverTracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "decision_driver"))
	return d
}

// Run searches for one accepted decision per level.
//
// Inputs:
//   - ctx: Checked between steps.
//   - levels: Number of decision levels. Zero is trivially solved.
//   - factory: Supplies an initialized point per level.
//   - check: Accepts or rejects the applied decisions.
//
// Outputs:
//   - *Result: Always non-nil. Solved is false if level 0 ran out.
//   - error: Factory, checker, point or observer failures,
//     ErrStepBudget, or ctx.Err().
func (d *Driver) Run(ctx context.Context, levels int, factory Factory, check Checker) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "decision.run",
		trace.WithAttributes(attribute.Int("decision.levels", levels)),
	)
	defer span.End()

	res, err := d.run(ctx, levels, factory, check)

	span.SetAttributes(
		attribute.Bool("decision.solved", res.Solved),
		attribute.Int("decision.steps", res.Steps),
		attribute.Int("decision.backtracks", res.Backtracks),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.logger.Info("search finished",
		slog.Bool("solved", res.Solved),
		slog.Int("levels", levels),
		slog.Int("steps", res.Steps),
		slog.Int("backtracks", res.Backtracks),
	)
	return res, err
}

func (d *Driver) run(ctx context.Context, levels int, factory Factory, check Checker) (*Result, error) {
	res := &Result{}
	if levels <= 0 {
		res.Solved = true
		return res, nil
	}

	stack := make([]Point, 0, levels)
	level := 0
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if d.maxSteps > 0 && res.Steps >= d.maxSteps {
			return res, fmt.Errorf("after %d steps: %w", res.Steps, ErrStepBudget)
		}

		if len(stack) == level {
			p, err := factory(ctx, level)
			if err != nil {
				return res, fmt.Errorf("create decision point for level %d: %w", level, err)
			}
			stack = append(stack, p)
		}
		p := stack[level]

		if !p.HasNext() {
			d.logger.Debug("decision point exhausted",
				slog.Int("level", level),
				slog.String("point_id", p.ID()),
			)
			stack = stack[:level]
			if level == 0 {
				return res, nil
			}
			level--
			res.Backtracks++
			if err := d.undo(ctx, res, level, stack[level]); err != nil {
				return res, err
			}
			continue
		}

		if err := p.Execute(ctx); err != nil {
			return res, fmt.Errorf("execute level %d: %w", level, err)
		}
		res.Steps++
		if err := d.notify(ctx, Event{Step: res.Steps, Level: level, Kind: EventExecute, PointID: p.ID(), Decision: p.String()}); err != nil {
			return res, err
		}

		ok, err := check(ctx)
		if err != nil {
			return res, fmt.Errorf("check level %d: %w", level, err)
		}
		if !ok {
			if err := d.undo(ctx, res, level, p); err != nil {
				return res, err
			}
			continue
		}

		if level == levels-1 {
			res.Solved = true
			res.Points = stack
			return res, nil
		}
		level++
	}
}

func (d *Driver) undo(ctx context.Context, res *Result, level int, p Point) error {
	decision := p.String()
	if err := p.Undo(ctx); err != nil {
		return fmt.Errorf("undo level %d: %w", level, err)
	}
	return d.notify(ctx, Event{Step: res.Steps, Level: level, Kind: EventUndo, PointID: p.ID(), Decision: decision})
}

func (d *Driver) notify(ctx context.Context, ev Event) error {
	d.logger.Debug("decision step",
		slog.String("kind", string(ev.Kind)),
		slog.Int("level", ev.Level),
		slog.Int("step", ev.Step),
		slog.String("point_id", ev.PointID),
	)
	if d.observer == nil {
		return nil
	}
	if err := d.observer.Observe(ctx, ev); err != nil {
		return fmt.Errorf("observe %s at step %d: %w", ev.Kind, ev.Step, err)
	}
	return nil
}
