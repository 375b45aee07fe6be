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
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianSolver/services/solver/decision"
	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "solver.threat"

// DecisionPoint resolves one flawed resource instant by ordering a pair of
// transactions with a temporal constraint.
//
// Description:
//
//	New parses the handler configuration. Initialize computes the
//	immutable candidate sequence from the instant's profile. The search
//	driver then alternates Execute and Undo: Execute posts a constraint
//	for the current (choice, kind) position and Undo retracts it and
//	advances the cursor.
//
// Thread Safety: Not safe for concurrent use. Driven by one search goroutine.
type DecisionPoint struct {
	decision.Base

	opts   Options
	client resource.ConstraintClient
	logger *slog.Logger
	tracer trace.Tracer

	instTime int64
	resName  string

	choices    []resource.Choice
	cursor     Cursor
	constraint resource.ConstraintID
}

// Option configures a DecisionPoint.
type Option func(*DecisionPoint)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(dp *DecisionPoint) {
		if logger != nil {
			dp.logger = logger
		}
	}
}

// WithTracer sets the tracer. Nil is ignored.
func WithTracer(tracer trace.Tracer) Option {
	return func(dp *DecisionPoint) {
		if tracer != nil {
			dp.tracer = tracer
		}
	}
}

// New creates a decision point for a flawed instant.
//
// Description:
//
//	Parses attrs and captures the instant's key, time and resource name
//	for diagnostics. The instant itself is not retained; pass it again to
//	Initialize.
//
// Inputs:
//   - client: Constraint mutation client. Must not be nil.
//   - inst: The flawed instant. Must have a profile with a resource.
//   - attrs: Handler configuration record.
//   - explanation: Why the flaw was selected (e.g. "lowerLevelFlaw").
//   - opts: Optional logger and tracer.
//
// Outputs:
//   - *DecisionPoint: Ready for Initialize.
//   - error: A *ConfigError for bad attrs, ErrInvalidInstant for a bad instant.
func New(client resource.ConstraintClient, inst *resource.Instant, attrs Attributes, explanation string, opts ...Option) (*DecisionPoint, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil constraint client", ErrInvalidConfig)
	}
	if err := checkInstant(inst); err != nil {
		return nil, err
	}

	parsed, err := ParseOptions(attrs)
	if err != nil {
		return nil, err
	}

	dp := &DecisionPoint{
		Base:     decision.NewBase(inst.Key, explanation),
		opts:     parsed,
		client:   client,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		instTime: inst.Time,
		resName:  inst.Profile.Resource().Name(),
	}
	for _, opt := range opts {
		opt(dp)
	}
	dp.logger = dp.logger.With(
		slog.String("component", "threat_decision_point"),
		slog.String("decision_id", dp.ID()),
		slog.Int64("instant", dp.instTime),
		slog.String("resource", dp.resName),
	)
	return dp, nil
}

func checkInstant(inst *resource.Instant) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instant", ErrInvalidInstant)
	}
	if inst.Profile == nil {
		return fmt.Errorf("%w: instant %d has no profile", ErrInvalidInstant, inst.Key)
	}
	if inst.Profile.Resource() == nil {
		return fmt.Errorf("%w: instant %d has no resource", ErrInvalidInstant, inst.Key)
	}
	return nil
}

// Initialize computes the ordered candidate sequence. It runs once.
//
// Description:
//
//	Queries the resource for raw ordering choices, keeps those the filter
//	pipeline accepts, stably sorts them with the configured order and,
//	with dedup=ordering, collapses runs that compare equal. The instant is
//	only read during the call.
//
// Inputs:
//   - ctx: Carries the trace span.
//   - inst: The instant passed to New.
//
// Outputs:
//   - error: decision.ErrAlreadyInitialized on a second call,
//     ErrInstantMismatch for another instant, ErrInvalidInstant, or a
//     *ConfigError when a contribution filter meets a non-flow profile.
func (dp *DecisionPoint) Initialize(ctx context.Context, inst *resource.Instant) (err error) {
	_, span := dp.tracer.Start(ctx, "threat.initialize",
		trace.WithAttributes(
			attribute.String("threat.decision_id", dp.ID()),
			attribute.Int64("threat.instant", dp.instTime),
			attribute.String("threat.resource", dp.resName),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if dp.Initialized() {
		return fmt.Errorf("entity %d: %w", dp.EntityKey(), decision.ErrAlreadyInitialized)
	}
	if err := checkInstant(inst); err != nil {
		return err
	}
	if inst.Key != dp.EntityKey() {
		return fmt.Errorf("%w: got instant %d, want %d", ErrInstantMismatch, inst.Key, dp.EntityKey())
	}

	raw := inst.Profile.Resource().OrderingChoices(inst)
	dp.logger.Debug("found choices before filtering", slog.Int("count", len(raw)))

	filters, err := NewFilters(dp.opts.Filter, inst.Profile, dp.Explanation(), inst, dp.logger)
	if err != nil {
		return err
	}

	accepted := make([]resource.Choice, 0, len(raw))
	for _, c := range raw {
		if filters.Accepts(c) {
			accepted = append(accepted, c)
		}
	}

	ordered := dp.opts.Order.Sort(accepted)
	if dp.opts.Dedup == DedupOrdering {
		ordered = dp.opts.Order.Collapse(ordered)
	}
	if dropped := len(accepted) - len(ordered); dropped > 0 {
		dp.logger.Debug("collapsed choices equal under order",
			slog.Int("dropped", dropped),
			slog.String("order", dp.opts.Order.String()),
		)
	}

	if err := dp.MarkInitialized(); err != nil {
		return err
	}
	dp.choices = ordered
	dp.cursor = NewCursor(len(ordered), len(dp.opts.Constraints), dp.opts.Iterate)

	recordInitialize(dp.opts.Filter, len(raw), len(accepted), len(ordered))
	span.SetAttributes(
		attribute.Int("threat.choices.raw", len(raw)),
		attribute.Int("threat.choices.accepted", len(accepted)),
		attribute.Int("threat.choices.ordered", len(ordered)),
		attribute.StringSlice("threat.filters", filters.Names()),
	)
	dp.logger.Debug("found choices after filtering",
		slog.Int("count", len(ordered)),
		slog.Bool("treat_as_lower", TreatAsLowerFlaw(inst, dp.Explanation())),
	)
	return nil
}

// HasNext reports whether an untried (choice, kind) position remains.
func (dp *DecisionPoint) HasNext() bool {
	return dp.cursor.HasNext()
}

// CanUndo reports whether a constraint is live and the base precondition
// holds.
func (dp *DecisionPoint) CanUndo() bool {
	return dp.Base.CanUndo() && dp.constraint.Valid()
}

// Execute posts a constraint for the current position.
//
// Description:
//
//	Creates a constraint of the current kind over the current choice's
//	predecessor and successor timepoints. The cursor does not move.
//	Calling Execute before Initialize, while a constraint is live, or
//	past the last position panics with a *ProtocolError.
//
// Inputs:
//   - ctx: Passed to the constraint client.
//
// Outputs:
//   - error: Constraint client failure. No constraint is live afterwards.
func (dp *DecisionPoint) Execute(ctx context.Context) (err error) {
	if !dp.Initialized() {
		violate("Execute", "decision point for instant %d not initialized", dp.EntityKey())
	}
	if dp.constraint.Valid() {
		violate("Execute", "constraint %s still live", dp.constraint)
	}
	if !dp.cursor.HasNext() {
		violate("Execute", "no choice left (%s)", dp.cursor)
	}

	choice := dp.choices[dp.cursor.Choice()]
	kind := dp.opts.Constraints[dp.cursor.Kind()]

	ctx, span := dp.tracer.Start(ctx, "threat.execute",
		trace.WithAttributes(
			attribute.String("threat.decision_id", dp.ID()),
			attribute.String("threat.kind", string(kind)),
			attribute.Int("threat.choice", dp.cursor.Choice()+1),
			attribute.Int("threat.choices", len(dp.choices)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dp.logger.Debug("assigning ordering",
		slog.String("predecessor", choice.Predecessor.String()),
		slog.String("successor", choice.Successor.String()),
		slog.String("kind", string(kind)),
		slog.String("explanation", dp.Explanation()),
	)

	id, err := dp.client.CreateConstraint(ctx, kind, []*resource.Timepoint{choice.Predecessor.Time, choice.Successor.Time})
	if err != nil {
		return fmt.Errorf("create %s constraint for %s: %w", kind, choice, err)
	}
	if !id.Valid() {
		return fmt.Errorf("create %s constraint for %s: client returned no handle", kind, choice)
	}

	dp.constraint = id
	dp.MarkExecuted()
	recordConstraint(kind, opCreated)
	return nil
}

// Undo retracts the live constraint and advances the cursor.
//
// Description:
//
//	Calling Undo with no live constraint panics with a *ProtocolError. If
//	the client fails to delete the constraint the error is returned and
//	the handle stays live.
//
// Inputs:
//   - ctx: Passed to the constraint client.
//
// Outputs:
//   - error: Constraint client failure.
func (dp *DecisionPoint) Undo(ctx context.Context) (err error) {
	if !dp.constraint.Valid() {
		violate("Undo", "no live constraint for instant %d", dp.EntityKey())
	}

	kind := dp.opts.Constraints[dp.cursor.Kind()]
	ctx, span := dp.tracer.Start(ctx, "threat.undo",
		trace.WithAttributes(
			attribute.String("threat.decision_id", dp.ID()),
			attribute.String("threat.constraint", string(dp.constraint)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dp.logger.Debug("retracting ordering decision", slog.String("constraint", string(dp.constraint)))

	if err := dp.client.DeleteConstraint(ctx, dp.constraint); err != nil {
		return fmt.Errorf("delete constraint %s: %w", dp.constraint, err)
	}

	dp.constraint = resource.NoConstraint
	dp.MarkUndone()
	dp.cursor.Advance()
	recordConstraint(kind, opRetracted)
	return nil
}

// Choices returns a copy of the ordered candidate sequence.
func (dp *DecisionPoint) Choices() []resource.Choice {
	return slices.Clone(dp.choices)
}

// ConstraintKinds returns a copy of the configured constraint kinds.
func (dp *DecisionPoint) ConstraintKinds() []resource.ConstraintKind {
	return slices.Clone(dp.opts.Constraints)
}

// Options returns the parsed handler configuration.
func (dp *DecisionPoint) Options() Options {
	return dp.opts
}

// Current returns the choice and kind at the cursor. ok is false once the
// cursor is exhausted.
func (dp *DecisionPoint) Current() (choice resource.Choice, kind resource.ConstraintKind, ok bool) {
	if !dp.cursor.HasNext() {
		return resource.Choice{}, "", false
	}
	return dp.choices[dp.cursor.Choice()], dp.opts.Constraints[dp.cursor.Kind()], true
}

// Constraint returns the live constraint handle, or resource.NoConstraint.
func (dp *DecisionPoint) Constraint() resource.ConstraintID {
	return dp.constraint
}

// Applies reports whether the decision point can resolve entity. Only
// flawed instants qualify.
func (dp *DecisionPoint) Applies(entity any) bool {
	inst, ok := entity.(*resource.Instant)
	return ok && inst != nil
}

// String renders the current decision and the full candidate list.
func (dp *DecisionPoint) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSTANT=%d on %s : ", dp.instTime, dp.resName)
	if len(dp.choices) == 0 {
		b.WriteString("NO CHOICES")
		return b.String()
	}

	idx := dp.displayIndex()
	cur := dp.choices[idx]
	fmt.Fprintf(&b, "  DECISION (CHOICE=%d of MAX_CHOICE=%d) %s to be before %s : ",
		idx+1, len(dp.choices), cur.Predecessor, cur.Successor)
	b.WriteString("  CHOICES ")
	for i, c := range dp.choices {
		fmt.Fprintf(&b, " : %d %s", i+1, c)
	}
	return b.String()
}

// ShortString renders the instant and the current ordering only.
func (dp *DecisionPoint) ShortString() string {
	s := fmt.Sprintf("INS(%d) on %s", dp.instTime, dp.resName)
	if len(dp.choices) == 0 {
		return s
	}
	cur := dp.choices[dp.displayIndex()]
	return fmt.Sprintf("%s {%s < %s}", s, cur.Predecessor, cur.Successor)
}

// displayIndex clamps the cursor to the last choice once exhausted.
func (dp *DecisionPoint) displayIndex() int {
	return min(dp.cursor.Choice(), len(dp.choices)-1)
}
