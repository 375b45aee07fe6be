// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package threat implements the resource threat decision point: for one
// flawed resource instant it enumerates transaction ordering choices,
// filters and orders them, and applies or retracts each as a temporal
// constraint under a backtracking search driver.
//
// # Initialization
//
//	Resource.OrderingChoices(inst)
//	        │  raw choices (may contain duplicates)
//	        ▼
//	┌──────────────────────────────────────────────┐
//	│ Filters: successor → predecessorNot → default│  short-circuit AND
//	└──────────────────────┬───────────────────────┘
//	                       ▼
//	┌──────────────────────────────────────────────┐
//	│ Order.Sort (stable) → Order.Collapse (dedup) │
//	└──────────────────────┬───────────────────────┘
//	                       ▼
//	             immutable []Choice + Cursor
//
// # Search
//
// Execute posts a constraint of the current kind over the current choice.
// Undo deletes it and advances the Cursor: pairFirst walks every choice
// with one kind before the next kind, constraintFirst walks every kind on
// one choice before the next choice.
//
// # Configuration
//
// The handler reads an Attributes record:
//
//	filter     none | predecessorNot | successor | both
//	order      comma list, e.g. "leastImpact,earliestSuccessor"
//	constraint precedesOnly | precedesFirst | concurrentOnly | concurrentFirst
//	iterate    pairFirst | constraintFirst
//	dedup      ordering | none
//
// Bad values are *ConfigError. Breaking the execute/undo protocol panics
// with a *ProtocolError.
package threat
