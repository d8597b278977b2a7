// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"context"
	"fmt"
	"math"

	"prose-scan/internal/detector"
	"prose-scan/internal/resilience"
)

// AuxiliarySignal is an optional, possibly remote, second opinion on a
// finding. It returns a confidence in [0,1].
type AuxiliarySignal interface {
	Score(ctx context.Context, finding detector.Finding, document string) (float64, error)
}

// AuxiliaryFunc adapts an ordinary function to AuxiliarySignal
type AuxiliaryFunc func(ctx context.Context, finding detector.Finding, document string) (float64, error)

// Score calls f
func (f AuxiliaryFunc) Score(ctx context.Context, finding detector.Finding, document string) (float64, error) {
	return f(ctx, finding, document)
}

// callSignal runs the signal in its own goroutine so a provider that ignores
// its context still cannot hold the pipeline past the deadline
func callSignal(ctx context.Context, signal AuxiliarySignal, f detector.Finding, document string) (float64, error) {
	type answer struct {
		value float64
		err   error
	}
	ch := make(chan answer, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: resilience.NewPermanentError(fmt.Sprintf("auxiliary signal panicked: %v", r), nil)}
			}
		}()
		v, err := signal.Score(ctx, f, document)
		ch <- answer{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return 0, a.err
		}
		if math.IsNaN(a.value) || a.value < 0 || a.value > 1 {
			return 0, resilience.NewPermanentError(fmt.Sprintf("auxiliary signal returned %v outside [0,1]", a.value), nil)
		}
		return a.value, nil
	}
}
