// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package library holds the immutable set of detection rules shared by every
// validation run.
package library

import (
	"fmt"
	"math"

	"prose-scan/internal/detector"
)

// Library is a validated, read-only set of rules. It is safe to share between
// goroutines; nothing in the engine mutates it after New returns.
type Library struct {
	rules   []detector.Rule
	index   map[string]int
	skipped []RuleLoadError
}

// New validates rules and builds a Library. Malformed rules are skipped and
// reported through Skipped. An empty library, duplicate ids or a library where
// every rule was skipped fail with ErrValidationFailed.
func New(rules []detector.Rule) (*Library, error) {
	return build(rules, nil)
}

func build(rules []detector.Rule, skipped []RuleLoadError) (*Library, error) {
	if len(rules)+len(skipped) == 0 {
		return nil, validationFailed("pattern library is empty")
	}

	lib := &Library{
		rules:   make([]detector.Rule, 0, len(rules)),
		index:   make(map[string]int, len(rules)),
		skipped: append([]RuleLoadError(nil), skipped...),
	}

	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.ID != "" {
			if seen[rule.ID] {
				return nil, validationFailed("duplicate rule id %q", rule.ID)
			}
			seen[rule.ID] = true
		}

		if err := checkRule(rule, i); err != nil {
			lib.skipped = append(lib.skipped, *err)
			continue
		}

		if rule.Escalation != nil {
			esc := *rule.Escalation
			rule.Escalation = &esc
		}
		lib.index[rule.ID] = len(lib.rules)
		lib.rules = append(lib.rules, rule)
	}

	if len(lib.rules) == 0 {
		return nil, validationFailed("no usable rules (%d skipped)", len(lib.skipped))
	}

	return lib, nil
}

// checkRule validates the fields of a single rule
func checkRule(rule detector.Rule, position int) *RuleLoadError {
	id := rule.ID
	if id == "" {
		return NewRuleLoadError(fmt.Sprintf("#%d", position), "missing id", nil)
	}
	if rule.Predicate == nil {
		return NewRuleLoadError(id, "missing match predicate", nil)
	}
	if !rule.Severity.Valid() {
		return NewRuleLoadError(id, "invalid severity", nil)
	}
	if math.IsNaN(rule.BaseConfidence) || rule.BaseConfidence < 0 || rule.BaseConfidence > 1 {
		return NewRuleLoadError(id, fmt.Sprintf("base confidence %v outside [0,1]", rule.BaseConfidence), nil)
	}
	if esc := rule.Escalation; esc != nil {
		if esc.WindowSize <= 0 {
			return NewRuleLoadError(id, "escalation window_size must be positive", nil)
		}
		if !esc.EscalatedSeverity.Valid() {
			return NewRuleLoadError(id, "escalation is missing escalated_severity", nil)
		}
	}
	return nil
}

// Len returns the number of usable rules
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.rules)
}

// Rules returns the usable rules in load order
func (l *Library) Rules() []detector.Rule {
	return append([]detector.Rule(nil), l.rules...)
}

// Rule looks up a rule by id
func (l *Library) Rule(id string) (detector.Rule, bool) {
	i, ok := l.index[id]
	if !ok {
		return detector.Rule{}, false
	}
	return l.rules[i], true
}

// Skipped returns the rules rejected while building the library
func (l *Library) Skipped() []RuleLoadError {
	return append([]RuleLoadError(nil), l.skipped...)
}
