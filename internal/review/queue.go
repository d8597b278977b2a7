// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package review orders findings that were not fixed automatically for a
// human reviewer.
package review

import (
	"fmt"
	"sort"

	"prose-scan/internal/detector"
	"prose-scan/internal/remediation"
)

// confidenceBand separates high- and low-confidence findings of one severity
const confidenceBand = 0.6

// PriorityFor maps a severity and confidence to a review priority.
// Critical findings are always Critical, whatever their confidence.
func PriorityFor(severity detector.Severity, confidence float64) detector.Priority {
	high := confidence >= confidenceBand
	switch severity {
	case detector.SeverityCritical:
		return detector.PriorityCritical
	case detector.SeverityMajor:
		if high {
			return detector.PriorityHigh
		}
		return detector.PriorityMedium
	default:
		if high {
			return detector.PriorityMedium
		}
		return detector.PriorityLow
	}
}

// Build returns one review item per deferred finding, highest priority first
// and then in document order
func Build(deferred []remediation.Deferred) []detector.ReviewItem {
	items := make([]detector.ReviewItem, 0, len(deferred))
	for _, d := range deferred {
		f := d.Finding
		p := PriorityFor(f.Severity, f.Confidence)
		items = append(items, detector.ReviewItem{
			FindingID:   f.ID,
			Priority:    p,
			Kind:        f.Kind,
			DetectorID:  f.DetectorID,
			Severity:    f.Severity,
			Confidence:  f.Confidence,
			Span:        f.Span,
			MatchedText: f.MatchedText,
			Reason:      d.Reason,
			SortKey:     sortKey(p, f),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j])
	})
	return items
}

// sortKey orders lexically the same way less does
func sortKey(p detector.Priority, f detector.Finding) string {
	return fmt.Sprintf("%d-%010d-%s", int(detector.PriorityCritical-p), f.Span.Start, f.ID)
}

func less(a, b detector.ReviewItem) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Span.Start != b.Span.Start {
		return a.Span.Start < b.Span.Start
	}
	return a.FindingID < b.FindingID
}

// Group is the review items of one kind
type Group struct {
	Kind  detector.Kind         `json:"kind" yaml:"kind"`
	Items []detector.ReviewItem `json:"items" yaml:"items"`
}

// Groups splits an ordered queue by kind for presentation. Kinds appear in
// the order pattern, echo, leak; empty kinds are omitted and the order inside
// each group is preserved.
func Groups(items []detector.ReviewItem) []Group {
	byKind := make(map[detector.Kind][]detector.ReviewItem)
	for _, item := range items {
		byKind[item.Kind] = append(byKind[item.Kind], item)
	}

	var groups []Group
	for _, kind := range detector.Kinds {
		if len(byKind[kind]) > 0 {
			groups = append(groups, Group{Kind: kind, Items: byKind[kind]})
		}
	}
	return groups
}

// CountByPriority tallies a queue
func CountByPriority(items []detector.ReviewItem) map[detector.Priority]int {
	counts := make(map[detector.Priority]int)
	for _, item := range items {
		counts[item.Priority]++
	}
	return counts
}
