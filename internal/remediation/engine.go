// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package remediation decides which findings are fixed automatically and
// applies those fixes to a copy of the document.
package remediation

import (
	"fmt"
	"sort"
	"strings"

	"prose-scan/internal/detector"
)

// Reasons a finding was not fixed
const (
	ReasonBelowThreshold = "below_threshold"
	ReasonNoFix          = "no_fix"
	ReasonOverlap        = "overlap"
	ReasonRetrigger      = "retrigger"
	ReasonConsistency    = "consistency"
)

const epsilon = 1e-9

// Rechecker reports whether a replacement would be flagged again by the
// detector that produced the finding
type Rechecker interface {
	Retriggers(document string, finding detector.Finding, replacement string) bool
}

// Placement is an applied fix and the span its replacement occupies in the
// fixed document
type Placement struct {
	Finding detector.Finding
	Region  detector.Span
}

// BatchRechecker is implemented by Recheckers that can also re-validate the
// fully patched document. Fixes that are harmless one at a time can combine
// into a new match; RetriggeredBy returns the ids of the fixes whose regions
// such a match touches.
type BatchRechecker interface {
	RetriggeredBy(fixed string, placements []Placement) []string
}

// RecheckFunc adapts an ordinary function to Rechecker
type RecheckFunc func(document string, finding detector.Finding, replacement string) bool

// Retriggers calls f
func (f RecheckFunc) Retriggers(document string, finding detector.Finding, replacement string) bool {
	return f(document, finding, replacement)
}

// Options configures an Engine
type Options struct {
	// FixThreshold is the inclusive minimum confidence for an automatic fix
	FixThreshold float64

	// Rechecker is optional. Without one, replacements are not re-validated.
	Rechecker Rechecker
}

// DefaultOptions returns the default remediation configuration
func DefaultOptions() Options {
	return Options{FixThreshold: 0.9}
}

// Deferred is a finding left for a human, with the reason it was not fixed
type Deferred struct {
	Finding detector.Finding
	Reason  string
}

// Outcome is the result of one Remediate call
type Outcome struct {
	FixedDocument string
	Fixes         []detector.Fix // one per finding, in document order
	Deferred      []Deferred     // in document order
}

// Applied counts the fixes that were applied
func (o Outcome) Applied() int {
	n := 0
	for _, f := range o.Fixes {
		if f.Applied {
			n++
		}
	}
	return n
}

// Engine applies confidence-gated fixes. It holds no per-document state.
type Engine struct {
	opts Options
}

// New creates an Engine
func New(opts Options) (*Engine, error) {
	if opts.FixThreshold < 0 || opts.FixThreshold > 1 {
		return nil, fmt.Errorf("fix threshold %v outside [0,1]", opts.FixThreshold)
	}
	return &Engine{opts: opts}, nil
}

type decision struct {
	finding detector.Finding
	reason  string
}

// Remediate partitions findings into fixes and deferred findings and applies
// the fixes in one pass over the original document. The input slice and the
// findings in it are not modified.
func (e *Engine) Remediate(document string, findings []detector.Finding) Outcome {
	order := append([]detector.Finding(nil), findings...)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.ID < b.ID
	})

	decisions := make([]decision, 0, len(order))
	var committed []detector.Span
	for _, f := range order {
		reason := e.check(document, f, committed)
		if reason == "" {
			committed = append(committed, f.Span)
		}
		decisions = append(decisions, decision{finding: f, reason: reason})
	}

	fixed, placed := apply(document, decisions)
	if batch, ok := e.opts.Rechecker.(BatchRechecker); ok {
		for len(placed) > 0 {
			if !demote(decisions, batch.RetriggeredBy(fixed, placed), ReasonRetrigger) {
				break
			}
			fixed, placed = apply(document, decisions)
		}
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		a, b := decisions[i].finding, decisions[j].finding
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.ID < b.ID
	})

	out := Outcome{FixedDocument: fixed, Fixes: make([]detector.Fix, 0, len(decisions))}
	for _, d := range decisions {
		out.Fixes = append(out.Fixes, detector.Fix{
			FindingID:       d.finding.ID,
			OriginalText:    d.finding.MatchedText,
			ReplacementText: d.finding.SuggestedFix,
			Applied:         d.reason == "",
			Confidence:      d.finding.Confidence,
			SpanBefore:      d.finding.Span,
			Reason:          d.reason,
		})
		if d.reason != "" {
			out.Deferred = append(out.Deferred, Deferred{Finding: d.finding, Reason: d.reason})
		}
	}
	return out
}

// check returns the reason f cannot be fixed, or "" when it can
func (e *Engine) check(document string, f detector.Finding, committed []detector.Span) string {
	if f.Confidence+epsilon < e.opts.FixThreshold {
		return ReasonBelowThreshold
	}
	if !f.HasFix || f.SuggestedFix == f.MatchedText {
		return ReasonNoFix
	}
	for _, span := range committed {
		if span.Overlaps(f.Span) {
			return ReasonOverlap
		}
	}
	if e.opts.Rechecker != nil && e.opts.Rechecker.Retriggers(document, f, f.SuggestedFix) {
		return ReasonRetrigger
	}
	return ""
}

// demote marks the still-committed decisions named in ids with reason and
// reports whether any changed
func demote(decisions []decision, ids []string, reason string) bool {
	if len(ids) == 0 {
		return false
	}
	hit := make(map[string]bool, len(ids))
	for _, id := range ids {
		hit[id] = true
	}
	changed := false
	for i := range decisions {
		if decisions[i].reason == "" && hit[decisions[i].finding.ID] {
			decisions[i].reason = reason
			changed = true
		}
	}
	return changed
}

// apply splices every committed fix into the original document and returns
// where each replacement landed. A fix whose span no longer holds its matched
// text, or collides with an earlier applied span, is demoted in place to a
// consistency failure.
func apply(document string, decisions []decision) (string, []Placement) {
	var idx []int
	for i, d := range decisions {
		if d.reason == "" {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return decisions[idx[a]].finding.Span.Start < decisions[idx[b]].finding.Span.Start
	})

	var (
		b      strings.Builder
		placed []Placement
	)
	b.Grow(len(document))
	last := 0
	for _, i := range idx {
		f := decisions[i].finding
		s := f.Span
		if s.Start < last || s.End > len(document) || s.Start > s.End || document[s.Start:s.End] != f.MatchedText {
			decisions[i].reason = ReasonConsistency
			continue
		}
		b.WriteString(document[last:s.Start])
		start := b.Len()
		b.WriteString(f.SuggestedFix)
		placed = append(placed, Placement{Finding: f, Region: detector.Span{Start: start, End: b.Len()}})
		last = s.End
	}
	b.WriteString(document[last:])
	return b.String(), placed
}
