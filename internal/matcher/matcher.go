// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package matcher runs every rule of a pattern library over one document.
package matcher

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"prose-scan/internal/detector"
	"prose-scan/internal/library"
)

// Result is the output of one Match call
type Result struct {
	Matches []detector.Match
	Tokens  *TokenIndex

	// Skipped lists rules whose predicate failed on this document
	Skipped []library.RuleLoadError
}

// Matcher applies a library to documents. It holds no per-document state and
// may be used from several goroutines at once.
type Matcher struct {
	lib *library.Library
}

// New creates a Matcher for lib
func New(lib *library.Library) *Matcher {
	return &Matcher{lib: lib}
}

// Match returns every match of every rule in text, ordered by start offset
// and then rule id. A rule whose predicate errors, panics or returns spans
// that do not fit the document is skipped for this document only.
func (m *Matcher) Match(text string) Result {
	res := Result{Tokens: Tokenize(text)}

	for _, rule := range m.lib.Rules() {
		spans, err := find(rule, text)
		if err == nil {
			spans, err = normalize(spans, text)
		}
		if err != nil {
			res.Skipped = append(res.Skipped, *library.NewRuleLoadError(rule.ID, "predicate failed", err))
			continue
		}

		for _, span := range spans {
			res.Matches = append(res.Matches, detector.Match{
				RuleID:        rule.ID,
				Span:          span,
				Text:          text[span.Start:span.End],
				TokenPosition: res.Tokens.PositionAt(span.Start),
			})
		}
	}

	sort.SliceStable(res.Matches, func(i, j int) bool {
		a, b := res.Matches[i], res.Matches[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.RuleID < b.RuleID
	})

	return res
}

// find calls the rule predicate, converting a panic into an error
func find(rule detector.Rule, text string) (spans []detector.Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rule.Predicate.Find(text)
}

// normalize sorts spans and checks they lie on rune boundaries inside text.
// Of two overlapping spans from the same rule only the earlier (or, on equal
// start, the longer) is kept.
func normalize(spans []detector.Span, text string) ([]detector.Span, error) {
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			return nil, fmt.Errorf("span %s outside document of %d bytes", s, len(text))
		}
		if !utf8.RuneStart(text[s.Start]) || (s.End < len(text) && !utf8.RuneStart(text[s.End])) {
			return nil, fmt.Errorf("span %s splits a character", s)
		}
	}

	sorted := append([]detector.Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	out := sorted[:0]
	for _, s := range sorted {
		if len(out) > 0 && out[len(out)-1].Overlaps(s) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
