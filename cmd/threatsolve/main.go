// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command threatsolve resolves resource threats in a scenario file by
// searching over ordering decisions.
//
// Usage:
//
//	threatsolve resolve --scenario battery.yaml [--config solver.yaml] [--journal dir] [--trace]
//	threatsolve choices --scenario battery.yaml --instant 100
//	threatsolve journal --path dir [--run id]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
