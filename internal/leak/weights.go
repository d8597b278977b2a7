// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package leak

import (
	"fmt"
	"math"

	"prose-scan/internal/detector"
)

// Weights are the factor weights of the combined leak confidence. They must
// each lie in [0,1] and sum to 1.
type Weights struct {
	Rarity   float64 `json:"rarity" yaml:"rarity"`
	Context  float64 `json:"context" yaml:"context"`
	Sequence float64 `json:"sequence" yaml:"sequence"`
	Boundary float64 `json:"boundary" yaml:"boundary"`
}

const weightTolerance = 1e-6

// DefaultWeights returns the 25/30/30/15 split
func DefaultWeights() Weights {
	return Weights{Rarity: 0.25, Context: 0.30, Sequence: 0.30, Boundary: 0.15}
}

// Validate checks the range of every weight and their sum
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"rarity": w.Rarity, "context": w.Context, "sequence": w.Sequence, "boundary": w.Boundary,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("leak weight %s=%v outside [0,1]", name, v)
		}
	}
	if sum := w.Rarity + w.Context + w.Sequence + w.Boundary; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("leak weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Combine returns the weighted sum of f, clamped to [0,1]
func (w Weights) Combine(f detector.LeakFactors) float64 {
	c := w.Rarity*f.Rarity + w.Context*f.Context + w.Sequence*f.Sequence + w.Boundary*f.Boundary
	return math.Max(0, math.Min(1, c))
}
