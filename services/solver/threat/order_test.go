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
	"testing"

	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_AscendingKeyPredecessor(t *testing.T) {
	t1 := tx("T1", 5, 0, 10, false)
	t2 := tx("T2", 6, 0, 10, true)
	t3 := tx("T3", 2, 0, 10, false)
	t4 := tx("T4", 3, 0, 10, true)

	order, err := ParseOrder("ascendingKeyPredecessor")
	require.NoError(t, err)

	sorted := order.Sort([]resource.Choice{pair(t1, t2), pair(t3, t4)})
	require.Len(t, sorted, 2)
	assert.Same(t, t3, sorted[0].Predecessor)
	assert.Same(t, t1, sorted[1].Predecessor)
}

func TestOrder_Criteria(t *testing.T) {
	// a: [0 10] key 1, b: [5 20] key 2, c: [2 4] key 3
	a := tx("a", 1, 0, 10, false)
	b := tx("b", 2, 5, 20, false)
	c := tx("c", 3, 2, 4, false)
	s := tx("s", 9, 0, 100, true)
	choices := []resource.Choice{pair(a, s), pair(b, s), pair(c, s)}

	tests := []struct {
		spec string
		want []string
	}{
		{"earliestPredecessor", []string{"a", "c", "b"}},
		{"latestPredecessor", []string{"b", "a", "c"}},
		{"longestPredecessor", []string{"b", "a", "c"}},
		{"shortestPredecessor", []string{"c", "a", "b"}},
		{"ascendingKeyPredecessor", []string{"a", "b", "c"}},
		{"descendingKeyPredecessor", []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			order, err := ParseOrder(tt.spec)
			require.NoError(t, err)

			var got []string
			for _, ch := range order.Sort(choices) {
				got = append(got, ch.Predecessor.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrder_SuccessorHalf(t *testing.T) {
	p := tx("p", 1, 0, 10, false)
	s1 := tx("s1", 2, 8, 10, true)
	s2 := tx("s2", 3, 1, 10, true)

	order, err := ParseOrder("earliestSuccessor")
	require.NoError(t, err)

	sorted := order.Sort([]resource.Choice{pair(p, s1), pair(p, s2)})
	assert.Same(t, s2, sorted[0].Successor)
}

func TestOrder_LeastImpact(t *testing.T) {
	succ := tx("succ", 10, 10, 20, true)
	// impact max(clamp(0-10), clamp(5-20)) = 0
	near := tx("near", 3, 0, 5, false)
	// impact max(clamp(15-10), clamp(30-20)) = 10
	far := tx("far", 1, 15, 30, false)
	// impact max(clamp(12-10), clamp(18-20)) = 2
	mid := tx("mid", 2, 12, 18, false)

	assert.Equal(t, int64(0), impact(pair(near, succ)))
	assert.Equal(t, int64(10), impact(pair(far, succ)))
	assert.Equal(t, int64(2), impact(pair(mid, succ)))

	order, err := ParseOrder(LeastImpactKey)
	require.NoError(t, err)

	sorted := order.Sort([]resource.Choice{pair(far, succ), pair(mid, succ), pair(near, succ)})
	assert.Equal(t, []string{"near", "mid", "far"}, []string{
		sorted[0].Predecessor.Name, sorted[1].Predecessor.Name, sorted[2].Predecessor.Name,
	})
}

func TestOrder_TieBreakDecidesAfterPrimaryKeys(t *testing.T) {
	// Same bounds, so earliestPredecessor is indifferent and keys decide.
	p1 := tx("p1", 7, 0, 10, false)
	p2 := tx("p2", 4, 0, 10, false)
	s := tx("s", 9, 0, 10, true)

	order, err := ParseOrder("earliestPredecessor")
	require.NoError(t, err)

	assert.Equal(t, 1, order.Compare(pair(p1, s), pair(p2, s)))
	assert.Equal(t, -1, order.Compare(pair(p2, s), pair(p1, s)))
	assert.Equal(t, 0, order.Compare(pair(p1, s), pair(p1, s)))
}

func TestOrder_Collapse(t *testing.T) {
	p := tx("p", 1, 0, 10, false)
	s := tx("s", 2, 0, 10, true)
	other := tx("o", 3, 0, 10, true)

	order, err := ParseOrder("")
	require.NoError(t, err)

	sorted := order.Sort([]resource.Choice{pair(p, s), pair(p, other), pair(p, s)})
	require.Len(t, sorted, 3)

	collapsed := order.Collapse(sorted)
	require.Len(t, collapsed, 2)
	assert.Same(t, s, collapsed[0].Successor)
	assert.Same(t, other, collapsed[1].Successor)
	assert.Len(t, sorted, 3, "collapse must not modify its input")
}

func TestComparator_String(t *testing.T) {
	assert.Equal(t, "earliestPredecessor", ByTransaction(Earliest, PredecessorHalf).String())
	assert.Equal(t, "descendingKeySuccessor", ByTransaction(DescendingKey, SuccessorHalf).String())
	assert.Equal(t, LeastImpactKey, LeastImpact().String())
}
