// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scenario loads resource fixtures from YAML and exposes them
// through the resource query interfaces.
//
// A scenario lists everything a profile would otherwise compute: the
// flawed instants, the ordering choices at each instant and, for flow
// resources, when each transaction first contributes to the lower and
// upper level. Example:
//
//	resources:
//	  - name: battery
//	    flow: true
//	    contributions:
//	      charge: {lower: 12, upper: 12}
//	transactions:
//	  - {name: charge, key: 1, bounds: {lower: 0, upper: 20}}
//	  - {name: drain, key: 2, bounds: {lower: 0, upper: 10}, consumer: true}
//	instants:
//	  - key: 100
//	    resource: battery
//	    time: 5
//	    lower_level_flaw: true
//	    lower_flaw_magnitude: 3
//	    explanation: lowerLevelFlaw
//	    choices:
//	      - {predecessor: charge, successor: drain}
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario marks every load failure other than I/O.
var ErrInvalidScenario = errors.New("invalid scenario")

// -----------------------------------------------------------------------------
// File format
// -----------------------------------------------------------------------------

// File is the YAML document.
type File struct {
	Resources    []ResourceSpec    `yaml:"resources" validate:"required,min=1,dive"`
	Transactions []TransactionSpec `yaml:"transactions" validate:"dive"`
	Instants     []InstantSpec     `yaml:"instants" validate:"dive"`
}

// ResourceSpec declares a resource. Contributions are required for
// contribution filters and only read when Flow is set.
type ResourceSpec struct {
	Name          string                      `yaml:"name" validate:"required"`
	Flow          bool                        `yaml:"flow"`
	Contributions map[string]ContributionSpec `yaml:"contributions"`
}

// ContributionSpec holds the earliest times at which a transaction
// contributes to each level. A nil time means it never does.
type ContributionSpec struct {
	Lower *int64 `yaml:"lower"`
	Upper *int64 `yaml:"upper"`
}

// BoundsSpec is a temporal bound.
type BoundsSpec struct {
	Lower int64 `yaml:"lower"`
	Upper int64 `yaml:"upper" validate:"gtefield=Lower"`
}

// TransactionSpec declares a transaction.
type TransactionSpec struct {
	Name     string     `yaml:"name" validate:"required"`
	Key      int64      `yaml:"key" validate:"gte=0"`
	Bounds   BoundsSpec `yaml:"bounds"`
	Consumer bool       `yaml:"consumer"`
	Quantity float64    `yaml:"quantity" validate:"gte=0"`
}

// ChoiceSpec names an ordering choice by transaction names.
type ChoiceSpec struct {
	Predecessor string `yaml:"predecessor" validate:"required"`
	Successor   string `yaml:"successor" validate:"required,nefield=Predecessor"`
}

// InstantSpec declares a flawed instant.
type InstantSpec struct {
	Key                int64        `yaml:"key" validate:"gte=0"`
	Resource           string       `yaml:"resource" validate:"required"`
	Time               int64        `yaml:"time"`
	LowerLevelFlaw     bool         `yaml:"lower_level_flaw"`
	UpperLevelFlaw     bool         `yaml:"upper_level_flaw"`
	LowerFlawMagnitude float64      `yaml:"lower_flaw_magnitude" validate:"gte=0"`
	UpperFlawMagnitude float64      `yaml:"upper_flaw_magnitude" validate:"gte=0"`
	Explanation        string       `yaml:"explanation"`
	Choices            []ChoiceSpec `yaml:"choices" validate:"dive"`
}

var scenarioValidate *validator.Validate

func init() {
	scenarioValidate = validator.New()
	scenarioValidate.RegisterStructValidation(validateInstantSpec, InstantSpec{})
}

// validateInstantSpec requires at least one flawed level.
func validateInstantSpec(sl validator.StructLevel) {
	inst := sl.Current().Interface().(InstantSpec)
	if !inst.LowerLevelFlaw && !inst.UpperLevelFlaw {
		sl.ReportError(inst.LowerLevelFlaw, "LowerLevelFlaw", "lower_level_flaw", "flawed", "")
	}
}

// -----------------------------------------------------------------------------
// Scenario
// -----------------------------------------------------------------------------

// Scenario is a loaded fixture.
//
// Thread Safety: Read-only after Load; safe for concurrent readers.
type Scenario struct {
	resources    map[string]*Resource
	transactions map[string]*resource.Transaction
	instants     []*resource.Instant
	byKey        map[int64]*resource.Instant
	explanations map[int64]string
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse builds a scenario from YAML.
//
// Description:
//
//	Decodes strictly (unknown fields are errors), validates the document
//	and resolves every transaction and resource name.
//
// Outputs:
//   - *Scenario: The loaded scenario.
//   - error: Wraps ErrInvalidScenario.
func Parse(data []byte) (*Scenario, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrInvalidScenario, err)
	}
	if err := scenarioValidate.Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return build(&f)
}

func build(f *File) (*Scenario, error) {
	s := &Scenario{
		resources:    make(map[string]*Resource, len(f.Resources)),
		transactions: make(map[string]*resource.Transaction, len(f.Transactions)),
		byKey:        make(map[int64]*resource.Instant, len(f.Instants)),
		explanations: make(map[int64]string, len(f.Instants)),
	}

	keys := make(map[int64]string, len(f.Transactions))
	for _, ts := range f.Transactions {
		if _, dup := s.transactions[ts.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate transaction %q", ErrInvalidScenario, ts.Name)
		}
		if other, dup := keys[ts.Key]; dup {
			return nil, fmt.Errorf("%w: transactions %q and %q share key %d", ErrInvalidScenario, other, ts.Name, ts.Key)
		}
		keys[ts.Key] = ts.Name
		s.transactions[ts.Name] = &resource.Transaction{
			Name:     ts.Name,
			Time:     &resource.Timepoint{Key: ts.Key, Bounds: resource.Interval{Lower: ts.Bounds.Lower, Upper: ts.Bounds.Upper}},
			Consumer: ts.Consumer,
			Quantity: ts.Quantity,
		}
	}

	for _, rs := range f.Resources {
		if _, dup := s.resources[rs.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate resource %q", ErrInvalidScenario, rs.Name)
		}
		r, err := s.newResource(rs)
		if err != nil {
			return nil, err
		}
		s.resources[rs.Name] = r
	}

	for _, is := range f.Instants {
		if _, dup := s.byKey[is.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate instant key %d", ErrInvalidScenario, is.Key)
		}
		r, ok := s.resources[is.Resource]
		if !ok {
			return nil, fmt.Errorf("%w: instant %d: unknown resource %q", ErrInvalidScenario, is.Key, is.Resource)
		}
		choices, err := s.resolveChoices(is)
		if err != nil {
			return nil, err
		}

		inst := &resource.Instant{
			Key:                is.Key,
			Time:               is.Time,
			Profile:            r.profile,
			LowerLevelFlaw:     is.LowerLevelFlaw,
			UpperLevelFlaw:     is.UpperLevelFlaw,
			LowerFlawMagnitude: is.LowerFlawMagnitude,
			UpperFlawMagnitude: is.UpperFlawMagnitude,
		}
		r.choices[is.Key] = choices
		s.instants = append(s.instants, inst)
		s.byKey[is.Key] = inst
		s.explanations[is.Key] = is.Explanation
	}
	return s, nil
}

func (s *Scenario) newResource(rs ResourceSpec) (*Resource, error) {
	r := &Resource{name: rs.Name, choices: make(map[int64][]resource.Choice)}
	if !rs.Flow {
		r.profile = &Profile{res: r}
		return r, nil
	}

	fp := &FlowProfile{
		Profile: Profile{res: r},
		lower:   make(map[*resource.Transaction]int64),
		upper:   make(map[*resource.Transaction]int64),
	}
	for name, cs := range rs.Contributions {
		t, ok := s.transactions[name]
		if !ok {
			return nil, fmt.Errorf("%w: resource %q: contribution of unknown transaction %q", ErrInvalidScenario, rs.Name, name)
		}
		if cs.Lower != nil {
			fp.lower[t] = *cs.Lower
		}
		if cs.Upper != nil {
			fp.upper[t] = *cs.Upper
		}
	}
	r.profile = fp
	return r, nil
}

func (s *Scenario) resolveChoices(is InstantSpec) ([]resource.Choice, error) {
	choices := make([]resource.Choice, 0, len(is.Choices))
	for _, cs := range is.Choices {
		pred, ok := s.transactions[cs.Predecessor]
		if !ok {
			return nil, fmt.Errorf("%w: instant %d: unknown transaction %q", ErrInvalidScenario, is.Key, cs.Predecessor)
		}
		succ, ok := s.transactions[cs.Successor]
		if !ok {
			return nil, fmt.Errorf("%w: instant %d: unknown transaction %q", ErrInvalidScenario, is.Key, cs.Successor)
		}
		choices = append(choices, resource.Choice{Predecessor: pred, Successor: succ})
	}
	return choices, nil
}

// Instants returns the flawed instants in file order.
func (s *Scenario) Instants() []*resource.Instant {
	return slices.Clone(s.instants)
}

// Instant looks up a flawed instant by key.
func (s *Scenario) Instant(key int64) (*resource.Instant, bool) {
	inst, ok := s.byKey[key]
	return inst, ok
}

// Explanation returns the explanation recorded for an instant.
func (s *Scenario) Explanation(key int64) string {
	return s.explanations[key]
}

// Transaction looks up a transaction by name.
func (s *Scenario) Transaction(name string) (*resource.Transaction, bool) {
	t, ok := s.transactions[name]
	return t, ok
}

// Resource looks up a resource by name.
func (s *Scenario) Resource(name string) (*Resource, bool) {
	r, ok := s.resources[name]
	return r, ok
}

// -----------------------------------------------------------------------------
// Resource and profiles
// -----------------------------------------------------------------------------

// Resource serves the ordering choices listed in the scenario.
type Resource struct {
	name    string
	profile resource.Profile
	choices map[int64][]resource.Choice
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// OrderingChoices returns a copy of the choices listed for the instant.
func (r *Resource) OrderingChoices(inst *resource.Instant) []resource.Choice {
	return slices.Clone(r.choices[inst.Key])
}

// Profile returns the resource's profile.
func (r *Resource) Profile() resource.Profile { return r.profile }

// Profile is the profile of a non-flow resource.
type Profile struct {
	res *Resource
}

// Resource returns the owning resource.
func (p *Profile) Resource() resource.Resource { return p.res }

// FlowProfile answers contribution queries from the scenario's tables.
type FlowProfile struct {
	Profile
	lower map[*resource.Transaction]int64
	upper map[*resource.Transaction]int64
}

// EarliestLowerLevelInstant returns the instant at which t first
// contributes to the lower level.
func (p *FlowProfile) EarliestLowerLevelInstant(t *resource.Transaction) (*resource.Instant, bool) {
	return p.instantAt(p.lower, t)
}

// EarliestUpperLevelInstant returns the instant at which t first
// contributes to the upper level.
func (p *FlowProfile) EarliestUpperLevelInstant(t *resource.Transaction) (*resource.Instant, bool) {
	return p.instantAt(p.upper, t)
}

func (p *FlowProfile) instantAt(times map[*resource.Transaction]int64, t *resource.Transaction) (*resource.Instant, bool) {
	at, ok := times[t]
	if !ok {
		return nil, false
	}
	return &resource.Instant{Time: at, Profile: p}, true
}
