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
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
)

func tx(name string, key, lb, ub int64, consumer bool) *resource.Transaction {
	return &resource.Transaction{
		Name:     name,
		Time:     &resource.Timepoint{Key: key, Bounds: resource.Interval{Lower: lb, Upper: ub}},
		Consumer: consumer,
		Quantity: 1,
	}
}

func pair(p, s *resource.Transaction) resource.Choice {
	return resource.Choice{Predecessor: p, Successor: s}
}

type stubResource struct {
	name    string
	choices []resource.Choice
	queried int
}

func (r *stubResource) Name() string { return r.name }

func (r *stubResource) OrderingChoices(*resource.Instant) []resource.Choice {
	r.queried++
	return r.choices
}

type stubProfile struct {
	res *stubResource
}

func (p *stubProfile) Resource() resource.Resource { return p.res }

// stubFlowProfile answers contribution queries from per-transaction times.
// A missing entry means the transaction never contributes.
type stubFlowProfile struct {
	stubProfile
	lower map[string]int64
	upper map[string]int64
}

func (p *stubFlowProfile) EarliestLowerLevelInstant(t *resource.Transaction) (*resource.Instant, bool) {
	return lookupInstant(p.lower, t)
}

func (p *stubFlowProfile) EarliestUpperLevelInstant(t *resource.Transaction) (*resource.Instant, bool) {
	return lookupInstant(p.upper, t)
}

func lookupInstant(times map[string]int64, t *resource.Transaction) (*resource.Instant, bool) {
	at, ok := times[t.Name]
	if !ok {
		return nil, false
	}
	return &resource.Instant{Key: 1000 + at, Time: at}, true
}

func newInstant(profile resource.Profile, key, at int64) *resource.Instant {
	return &resource.Instant{Key: key, Time: at, Profile: profile, LowerLevelFlaw: true, LowerFlawMagnitude: 1}
}

type created struct {
	id   resource.ConstraintID
	kind resource.ConstraintKind
	pred int64
	succ int64
}

// recordingClient hands out sequential handles and remembers every call.
type recordingClient struct {
	next      int
	live      map[resource.ConstraintID]created
	created   []created
	deleted   []resource.ConstraintID
	createErr error
	deleteErr error
}

func newRecordingClient() *recordingClient {
	return &recordingClient{live: map[resource.ConstraintID]created{}}
}

func (c *recordingClient) CreateConstraint(_ context.Context, kind resource.ConstraintKind, scope []*resource.Timepoint) (resource.ConstraintID, error) {
	if c.createErr != nil {
		return resource.NoConstraint, c.createErr
	}
	if len(scope) != 2 {
		return resource.NoConstraint, errors.New("scope must have two timepoints")
	}
	c.next++
	rec := created{
		id:   resource.ConstraintID(fmt.Sprintf("c%d", c.next)),
		kind: kind,
		pred: scope[0].Key,
		succ: scope[1].Key,
	}
	c.live[rec.id] = rec
	c.created = append(c.created, rec)
	return rec.id, nil
}

func (c *recordingClient) DeleteConstraint(_ context.Context, id resource.ConstraintID) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	if _, ok := c.live[id]; !ok {
		return fmt.Errorf("unknown constraint %s", id)
	}
	delete(c.live, id)
	c.deleted = append(c.deleted, id)
	return nil
}
