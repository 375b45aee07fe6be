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
	"github.com/AleutianAI/AleutianSolver/services/solver/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Choice pipeline stages used as metric labels.
const (
	stageRaw      = "raw"
	stageAccepted = "accepted"
	stageOrdered  = "ordered"
)

// Constraint operations used as metric labels.
const (
	opCreated   = "created"
	opRetracted = "retracted"
)

// sanitizeKind maps a constraint kind to a bounded label value.
//
// Thread Safety: Safe for concurrent use.
func sanitizeKind(kind resource.ConstraintKind) string {
	switch kind {
	case resource.Precedes, resource.Concurrent:
		return string(kind)
	default:
		return "unknown"
	}
}

var (
	// decisionPointsInitialized counts Initialize calls that completed.
	//
	// Labels:
	//   - filter: Configured filter mode
	decisionPointsInitialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solver",
			Subsystem: "threat",
			Name:      "decision_points_initialized_total",
			Help:      "Total resource threat decision points initialized by filter mode",
		},
		[]string{"filter"},
	)

	// choicesTotal counts choices at each stage of initialization.
	//
	// Labels:
	//   - stage: "raw", "accepted" or "ordered"
	choicesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solver",
			Subsystem: "threat",
			Name:      "choices_total",
			Help:      "Total ordering choices by pipeline stage",
		},
		[]string{"stage"},
	)

	// constraintsTotal counts constraints posted and retracted.
	//
	// Labels:
	//   - kind: "precedes" or "concurrent"
	//   - op: "created" or "retracted"
	constraintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solver",
			Subsystem: "threat",
			Name:      "constraints_total",
			Help:      "Total threat resolution constraints by kind and operation",
		},
		[]string{"kind", "op"},
	)

	// candidatesHistogram measures the final candidate count per point.
	candidatesHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "solver",
			Subsystem: "threat",
			Name:      "candidates",
			Help:      "Distribution of ordered candidate choices per decision point",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
)

func recordInitialize(filter FilterMode, raw, accepted, ordered int) {
	decisionPointsInitialized.WithLabelValues(filter.String()).Inc()
	choicesTotal.WithLabelValues(stageRaw).Add(float64(raw))
	choicesTotal.WithLabelValues(stageAccepted).Add(float64(accepted))
	choicesTotal.WithLabelValues(stageOrdered).Add(float64(ordered))
	candidatesHistogram.Observe(float64(ordered))
}

func recordConstraint(kind resource.ConstraintKind, op string) {
	constraintsTotal.WithLabelValues(sanitizeKind(kind), op).Inc()
}
