// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package shared

import (
	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/formatters"
)

// FilterReviewQueue keeps the review items whose priority is displayed
func FilterReviewQueue(items []detector.ReviewItem, options formatters.FormatterOptions) []detector.ReviewItem {
	filtered := make([]detector.ReviewItem, 0, len(items))
	for _, item := range items {
		if options.ShowPriority(item.Priority) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// FilterResults returns shallow copies of results whose review queues only
// hold the displayed priorities
func FilterResults(results []*core.Result, options formatters.FormatterOptions) []*core.Result {
	out := make([]*core.Result, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		c := *r
		c.ReviewQueue = FilterReviewQueue(r.ReviewQueue, options)
		out = append(out, &c)
	}
	return out
}

// Totals aggregates summaries across documents
type Totals struct {
	Documents      int `json:"documents" yaml:"documents"`
	TotalFindings  int `json:"total_findings" yaml:"total_findings"`
	TotalAutoFixed int `json:"total_auto_fixed" yaml:"total_auto_fixed"`
	ReviewItems    int `json:"review_items" yaml:"review_items"`
	Suppressed     int `json:"suppressed" yaml:"suppressed"`
}

// Sum totals the summaries of results
func Sum(results []*core.Result) Totals {
	var t Totals
	for _, r := range results {
		if r == nil {
			continue
		}
		t.Documents++
		t.TotalFindings += r.Summary.TotalFindings
		t.TotalAutoFixed += r.Summary.TotalAutoFixed
		t.ReviewItems += len(r.ReviewQueue)
		t.Suppressed += r.Summary.Suppressed
	}
	return t
}
