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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreatAsLowerFlaw(t *testing.T) {
	tests := []struct {
		name        string
		inst        resource.Instant
		explanation string
		want        bool
	}{
		{"lower only", resource.Instant{LowerLevelFlaw: true}, "", true},
		{"upper only", resource.Instant{UpperLevelFlaw: true}, "lowerLevelFlaw", false},
		{"both, explanation lower", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, UpperFlawMagnitude: 9}, "lowerLevelFlaw", true},
		{"both, explanation contains Lower", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, UpperFlawMagnitude: 9}, "mostLowerFirst", true},
		{"both, explanation upper", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, LowerFlawMagnitude: 9}, "upperLevelFlaw", false},
		{"both, explanation contains Upper", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, LowerFlawMagnitude: 9}, "byUpper", false},
		{"both, lower magnitude wins", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, LowerFlawMagnitude: 3, UpperFlawMagnitude: 2}, "", true},
		{"both, upper magnitude wins", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, LowerFlawMagnitude: 2, UpperFlawMagnitude: 3}, "", false},
		{"both, tie favours lower", resource.Instant{LowerLevelFlaw: true, UpperLevelFlaw: true, LowerFlawMagnitude: 2, UpperFlawMagnitude: 2}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := tt.inst
			assert.Equal(t, tt.want, TreatAsLowerFlaw(&inst, tt.explanation))
		})
	}
}

func TestNewFilters_Composition(t *testing.T) {
	flow := &stubFlowProfile{stubProfile: stubProfile{res: &stubResource{name: "r"}}}
	inst := newInstant(flow, 1, 10)

	tests := []struct {
		mode FilterMode
		want []string
	}{
		{FilterNone, []string{"DefaultFilter"}},
		{FilterPredecessorNot, []string{"PredecessorNotContributingFilter", "DefaultFilter"}},
		{FilterSuccessor, []string{"SuccessorContributingFilter", "DefaultFilter"}},
		{FilterBoth, []string{"SuccessorContributingFilter", "PredecessorNotContributingFilter", "DefaultFilter"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			fs, err := NewFilters(tt.mode, flow, "", inst, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fs.Names())
		})
	}
}

func TestNewFilters_RequiresFlowProfile(t *testing.T) {
	plain := &stubProfile{res: &stubResource{name: "r"}}
	inst := newInstant(plain, 1, 10)

	for _, mode := range []FilterMode{FilterPredecessorNot, FilterSuccessor, FilterBoth} {
		t.Run(mode.String(), func(t *testing.T) {
			_, err := NewFilters(mode, plain, "", inst, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, OptionFilter, cfgErr.Option)
		})
	}

	_, err := NewFilters(FilterNone, plain, "", inst, nil)
	assert.NoError(t, err)
}

func TestPredecessorNotContributing(t *testing.T) {
	flow := &stubFlowProfile{
		stubProfile: stubProfile{res: &stubResource{name: "r"}},
		lower:       map[string]int64{"lateProd": 15, "earlyProd": 5, "cons": 20},
		upper:       map[string]int64{"lateCons": 15, "earlyCons": 10},
	}
	succ := tx("succ", 99, 0, 100, true)

	t.Run("lower flaw", func(t *testing.T) {
		inst := newInstant(flow, 1, 10)
		fs, err := NewFilters(FilterPredecessorNot, flow, "", inst, nil)
		require.NoError(t, err)

		assert.True(t, fs.Accepts(pair(tx("lateProd", 1, 0, 20, false), succ)))
		assert.False(t, fs.Accepts(pair(tx("earlyProd", 2, 0, 20, false), succ)))
		assert.False(t, fs.Accepts(pair(tx("cons", 3, 0, 20, true), succ)), "consumer predecessor")
		assert.False(t, fs.Accepts(pair(tx("unknown", 4, 0, 20, false), succ)), "no contributing instant")
	})

	t.Run("upper flaw", func(t *testing.T) {
		inst := &resource.Instant{Key: 2, Time: 10, Profile: flow, UpperLevelFlaw: true}
		fs, err := NewFilters(FilterPredecessorNot, flow, "", inst, nil)
		require.NoError(t, err)

		assert.True(t, fs.Accepts(pair(tx("lateCons", 1, 0, 20, true), succ)))
		// Contributing exactly at the flawed time is already contributing.
		assert.False(t, fs.Accepts(pair(tx("earlyCons", 2, 0, 20, true), succ)))
		assert.False(t, fs.Accepts(pair(tx("lateProd", 3, 0, 20, false), succ)), "producer predecessor")
	})
}

func TestSuccessorContributing(t *testing.T) {
	flow := &stubFlowProfile{
		stubProfile: stubProfile{res: &stubResource{name: "r"}},
		lower:       map[string]int64{"nowCons": 10, "lateCons": 11},
		upper:       map[string]int64{"earlyProd": 3, "lateProd": 30},
	}
	pred := tx("pred", 1, 0, 100, false)

	t.Run("lower flaw", func(t *testing.T) {
		inst := newInstant(flow, 1, 10)
		fs, err := NewFilters(FilterSuccessor, flow, "", inst, nil)
		require.NoError(t, err)

		assert.True(t, fs.Accepts(pair(pred, tx("nowCons", 2, 0, 20, true))))
		assert.False(t, fs.Accepts(pair(pred, tx("lateCons", 3, 0, 20, true))))
		assert.False(t, fs.Accepts(pair(pred, tx("earlyProd", 4, 0, 20, false))), "producer successor")
	})

	t.Run("upper flaw", func(t *testing.T) {
		inst := &resource.Instant{Key: 2, Time: 10, Profile: flow, UpperLevelFlaw: true}
		fs, err := NewFilters(FilterSuccessor, flow, "", inst, nil)
		require.NoError(t, err)

		assert.True(t, fs.Accepts(pair(pred, tx("earlyProd", 2, 0, 20, false))))
		assert.False(t, fs.Accepts(pair(pred, tx("lateProd", 3, 0, 20, false))))
		assert.False(t, fs.Accepts(pair(pred, tx("nowCons", 4, 0, 20, true))), "consumer successor")
	})
}

func TestFilters_BothRejectsConsumerPredecessorUnderLowerFlaw(t *testing.T) {
	flow := &stubFlowProfile{
		stubProfile: stubProfile{res: &stubResource{name: "r"}},
		// Every transaction would pass the timing checks.
		lower: map[string]int64{"consPred": 50, "prodPred": 50, "succ": 0},
	}
	inst := newInstant(flow, 1, 10)
	succ := tx("succ", 9, 0, 20, true)

	fs, err := NewFilters(FilterBoth, flow, "lowerLevelFlaw", inst, nil)
	require.NoError(t, err)

	assert.False(t, fs.Accepts(pair(tx("consPred", 1, 0, 20, true), succ)))
	assert.True(t, fs.Accepts(pair(tx("prodPred", 2, 0, 20, false), succ)))
}
