// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package echo finds repeated occurrences of the same rule within a token
// window and escalates them.
package echo

import (
	"sort"

	"prose-scan/internal/detector"
)

// RuleSource looks rules up by id. *library.Library satisfies it.
type RuleSource interface {
	Rule(id string) (detector.Rule, bool)
}

// Classified is a match together with its echo decision
type Classified struct {
	detector.Match

	// Echo is true when an earlier match of the same rule lies less than the
	// rule's window size behind this one
	Echo bool

	// Severity is the escalated severity for echoes and the rule's base
	// severity otherwise
	Severity detector.Severity

	// Distance is the token distance to the previous match of the same rule,
	// or -1 for the first match
	Distance int
}

// Result is the outcome of Detect
type Result struct {
	// Matches is aligned with the input slice
	Matches []Classified

	// Groups are the chains of two or more matches connected by echoes
	Groups []detector.EchoGroup
}

// Echoes counts the escalated matches
func (r Result) Echoes() int {
	n := 0
	for _, m := range r.Matches {
		if m.Echo {
			n++
		}
	}
	return n
}

// Detect classifies matches. Only rules that declare an escalation window
// take part; other matches are passed through at base severity.
//
// Each rule group is sorted by token position once and scanned forward,
// comparing every match with the one immediately before it.
func Detect(matches []detector.Match, rules RuleSource) Result {
	res := Result{Matches: make([]Classified, len(matches))}

	byRule := make(map[string][]int)
	var order []string
	for i, m := range matches {
		rule, ok := rules.Rule(m.RuleID)
		res.Matches[i] = Classified{Match: m, Severity: rule.Severity, Distance: -1}
		if !ok || rule.Escalation == nil {
			continue
		}
		if _, seen := byRule[m.RuleID]; !seen {
			order = append(order, m.RuleID)
		}
		byRule[m.RuleID] = append(byRule[m.RuleID], i)
	}
	sort.Strings(order)

	for _, id := range order {
		rule, _ := rules.Rule(id)
		indices := byRule[id]
		sort.SliceStable(indices, func(a, b int) bool {
			ma, mb := matches[indices[a]], matches[indices[b]]
			if ma.TokenPosition != mb.TokenPosition {
				return ma.TokenPosition < mb.TokenPosition
			}
			return ma.Span.Start < mb.Span.Start
		})

		var chain []detector.Match
		flush := func() {
			if len(chain) >= 2 {
				res.Groups = append(res.Groups, detector.EchoGroup{RuleID: id, Matches: chain})
			}
			chain = nil
		}

		for k, idx := range indices {
			if k == 0 {
				chain = []detector.Match{matches[idx]}
				continue
			}
			prev := matches[indices[k-1]]
			distance := matches[idx].TokenPosition - prev.TokenPosition
			res.Matches[idx].Distance = distance

			if distance < rule.Escalation.WindowSize {
				res.Matches[idx].Echo = true
				res.Matches[idx].Severity = rule.Escalation.EscalatedSeverity
				chain = append(chain, matches[idx])
				continue
			}
			flush()
			chain = []detector.Match{matches[idx]}
		}
		flush()
	}

	return res
}
