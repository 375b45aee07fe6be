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
	"fmt"
)

// Package-level error definitions.
var (
	// ErrInvalidConfig marks every configuration failure. The decision
	// point cannot be used once it is returned.
	ErrInvalidConfig = errors.New("invalid threat handler config")

	// ErrInvalidInstant is returned for an instant without a profile or
	// resource.
	ErrInvalidInstant = errors.New("invalid flawed instant")

	// ErrInstantMismatch is returned when Initialize receives an instant
	// other than the one the decision point was created for.
	ErrInstantMismatch = errors.New("instant does not belong to decision point")
)

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	Option string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("threat handler option %s: %s", e.Option, e.Reason)
	}
	return fmt.Sprintf("threat handler option %s=%q: %s", e.Option, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// ProtocolError is the panic value raised when the search driver breaks
// the execute/undo protocol. It indicates a driver bug, not a data
// condition, and is never returned as an ordinary error.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return "threat decision point protocol violation in " + e.Op + ": " + e.Reason
}

func violate(op, format string, args ...any) {
	panic(&ProtocolError{Op: op, Reason: fmt.Sprintf(format, args...)})
}
