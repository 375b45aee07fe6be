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

import "fmt"

// Cursor walks the choice × constraint-kind product.
//
// Description:
//
//	The cursor is the (choice index, kind index) pair of a decision point.
//	Advance moves it one step according to the iteration order. Once the
//	slower-moving index passes its end HasNext is false and Advance is a
//	no-op.
//
// Thread Safety: Not safe for concurrent use.
type Cursor struct {
	choice  int
	kind    int
	choices int
	kinds   int
	order   IterationOrder
}

// NewCursor creates a cursor positioned at (0, 0).
func NewCursor(choices, kinds int, order IterationOrder) Cursor {
	return Cursor{choices: choices, kinds: kinds, order: order}
}

// Choice returns the current choice index.
func (c *Cursor) Choice() int { return c.choice }

// Kind returns the current constraint-kind index.
func (c *Cursor) Kind() int { return c.kind }

// HasNext reports whether the cursor points into the product.
func (c *Cursor) HasNext() bool {
	return c.choice < c.choices && c.kind < c.kinds
}

// Advance moves to the next position.
//
// PairFirst steps the choice index and, on wrap, resets it and steps the
// kind. ConstraintFirst steps the kind and, on wrap, resets it and steps
// the choice.
func (c *Cursor) Advance() {
	if !c.HasNext() {
		return
	}
	switch c.order {
	case ConstraintFirst:
		c.kind++
		if c.kind == c.kinds {
			c.kind = 0
			c.choice++
			if c.choice == c.choices {
				// Leave kind past its end too so both indices read as exhausted.
				c.kind = c.kinds
			}
		}
	default:
		c.choice++
		if c.choice == c.choices {
			c.choice = 0
			c.kind++
			if c.kind == c.kinds {
				c.choice = c.choices
			}
		}
	}
}

// String renders the position for logs.
func (c Cursor) String() string {
	return fmt.Sprintf("choice %d/%d kind %d/%d %s", c.choice, c.choices, c.kind, c.kinds, c.order)
}
