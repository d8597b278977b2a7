// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"time"

	"prose-scan/internal/parallel"
)

// BatchResult is the outcome for one document of a batch
type BatchResult struct {
	Name     string
	Result   *Result
	Err      error
	Duration time.Duration
}

// ValidateBatch validates documents concurrently on Options.Workers
// goroutines. The library is shared read-only; nothing else is shared between
// documents. Results are returned in input order, and a failure in one
// document does not affect the others.
func (e *Engine) ValidateBatch(ctx context.Context, inputs []Input) []BatchResult {
	ids := make([]string, len(inputs))
	for i, in := range inputs {
		ids[i] = in.Name
	}

	finish := e.observer.StartTiming("core", "validate_batch", "")
	results := parallel.Run(ctx, e.opts.Workers, ids, inputs, e.Validate, e.observer)

	out := make([]BatchResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = BatchResult{Name: inputs[i].Name, Result: r.Output, Err: r.Error, Duration: r.Duration}
		if r.Error != nil {
			failed++
		}
	}
	finish(failed == 0, map[string]interface{}{"documents": len(inputs), "failed": failed})
	return out
}
