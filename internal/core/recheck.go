// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"sort"

	"prose-scan/internal/detector"
	"prose-scan/internal/leak"
	"prose-scan/internal/library"
	"prose-scan/internal/remediation"
)

// rechecker re-runs the detector of a finding over the patched text so a fix
// can never reintroduce what it removed
type rechecker struct {
	lib     *library.Library
	scanner *leak.Scanner
}

func (r *rechecker) Retriggers(document string, f detector.Finding, replacement string) bool {
	if f.Kind == detector.KindLeak {
		return r.scanner.Flags(replacement)
	}

	rule, ok := r.lib.Rule(f.DetectorID)
	if !ok {
		return false
	}
	if f.Span.Start < 0 || f.Span.End > len(document) || f.Span.Start > f.Span.End {
		return true
	}

	patched := document[:f.Span.Start] + replacement + document[f.Span.End:]
	spans, err := find(rule, patched)
	if err != nil {
		return true
	}

	region := detector.Span{Start: f.Span.Start, End: f.Span.Start + len(replacement)}
	return touchesAny(spans, region)
}

// RetriggeredBy re-runs every detector that produced an applied fix over the
// fully patched document
func (r *rechecker) RetriggeredBy(fixed string, placements []remediation.Placement) []string {
	var (
		leaks []remediation.Placement
		hit   []string
	)
	byRule := make(map[string][]remediation.Placement)
	for _, p := range placements {
		if p.Finding.Kind == detector.KindLeak {
			leaks = append(leaks, p)
			continue
		}
		byRule[p.Finding.DetectorID] = append(byRule[p.Finding.DetectorID], p)
	}

	if len(leaks) > 0 {
		spans := r.scanner.Spans(fixed)
		for _, p := range leaks {
			if touchesAny(spans, p.Region) {
				hit = append(hit, p.Finding.ID)
			}
		}
	}

	for id, group := range byRule {
		rule, ok := r.lib.Rule(id)
		if !ok {
			continue
		}
		spans, err := find(rule, fixed)
		for _, p := range group {
			if err != nil || touchesAny(spans, p.Region) {
				hit = append(hit, p.Finding.ID)
			}
		}
	}
	sort.Strings(hit)
	return hit
}

// find runs a rule's predicate, turning a panic into an error
func find(rule detector.Rule, text string) (spans []detector.Span, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, p)
		}
	}()
	return rule.Predicate.Find(text)
}

func touchesAny(spans []detector.Span, region detector.Span) bool {
	for _, s := range spans {
		if touches(s, region) {
			return true
		}
	}
	return false
}

// touches reports whether s covers any part of region, or the insertion
// point when region is empty
func touches(s, region detector.Span) bool {
	if region.Len() == 0 {
		return s.Start < region.Start && region.Start < s.End
	}
	return s.Overlaps(region)
}
