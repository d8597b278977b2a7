// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"prose-scan/internal/detector"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the on-disk form of a rule
type RuleSpec struct {
	ID                  string          `yaml:"id"`
	Category            string          `yaml:"category"`
	Severity            string          `yaml:"severity"`
	BaseConfidence      *float64        `yaml:"base_confidence"`
	Pattern             string          `yaml:"pattern,omitempty"`
	Phrase              string          `yaml:"phrase,omitempty"`
	CaseInsensitive     bool            `yaml:"case_insensitive"`
	Replacement         *string         `yaml:"replacement,omitempty"`
	ReplacementTemplate string          `yaml:"replacement_template,omitempty"`
	PreserveCase        bool            `yaml:"preserve_case"`
	Escalation          *EscalationSpec `yaml:"escalation,omitempty"`
}

// EscalationSpec is the on-disk form of a rule's escalation block
type EscalationSpec struct {
	WindowSize        int    `yaml:"window_size"`
	EscalatedSeverity string `yaml:"escalated_severity"`
}

// File is the pattern library file format
type File struct {
	Version string     `yaml:"version"`
	Rules   []RuleSpec `yaml:"rules"`
}

// DefaultBaseConfidence is used for rules that do not declare one
const DefaultBaseConfidence = 0.8

// LoadFile reads and parses a YAML pattern library
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("error reading pattern library: %w", err)
	}
	lib, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// Parse builds a Library from YAML. A document that is not valid YAML is
// structurally invalid; problems inside individual rules only skip that rule.
func Parse(data []byte) (*Library, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, validationFailed("error parsing pattern library: %v", err)
	}

	var (
		rules   []detector.Rule
		skipped []RuleLoadError
	)
	for i, spec := range file.Rules {
		rule, err := spec.compile()
		if err != nil {
			if err.RuleID == "" {
				err.RuleID = fmt.Sprintf("#%d", i)
			}
			skipped = append(skipped, *err)
			continue
		}
		rules = append(rules, rule)
	}

	return build(rules, skipped)
}

// compile turns a RuleSpec into a Rule
func (s RuleSpec) compile() (detector.Rule, *RuleLoadError) {
	fail := func(reason string, cause error) (detector.Rule, *RuleLoadError) {
		return detector.Rule{}, NewRuleLoadError(s.ID, reason, cause)
	}

	if s.ID == "" {
		return fail("missing id", nil)
	}

	severity, err := detector.ParseSeverity(s.Severity)
	if err != nil {
		return fail("invalid severity", err)
	}

	confidence := DefaultBaseConfidence
	if s.BaseConfidence != nil {
		confidence = *s.BaseConfidence
	}

	var (
		predicate detector.Predicate
		re        *regexp.Regexp
	)
	switch {
	case s.Pattern != "" && s.Phrase != "":
		return fail("pattern and phrase are mutually exclusive", nil)
	case s.Pattern != "":
		source := s.Pattern
		if s.CaseInsensitive {
			source = "(?i)" + source
		}
		re, err = regexp.Compile(source)
		if err != nil {
			return fail("invalid pattern", err)
		}
		predicate = &regexPredicate{re: re}
	case s.Phrase != "":
		predicate, err = Phrase(s.Phrase, s.CaseInsensitive)
		if err != nil {
			return fail("invalid phrase", err)
		}
	default:
		return fail("missing pattern or phrase", nil)
	}

	var fix detector.FixTemplate
	switch {
	case s.Replacement != nil && s.ReplacementTemplate != "":
		return fail("replacement and replacement_template are mutually exclusive", nil)
	case s.Replacement != nil:
		fix = LiteralFix(*s.Replacement, s.PreserveCase)
	case s.ReplacementTemplate != "":
		if re == nil {
			return fail("replacement_template requires a pattern", nil)
		}
		fix = RegexFix(re, s.ReplacementTemplate, s.PreserveCase)
	}

	var escalation *detector.Escalation
	if s.Escalation != nil {
		escalated, err := detector.ParseSeverity(s.Escalation.EscalatedSeverity)
		if err != nil {
			return fail("escalation is missing escalated_severity", err)
		}
		escalation = &detector.Escalation{
			WindowSize:        s.Escalation.WindowSize,
			EscalatedSeverity: escalated,
		}
	}

	return detector.Rule{
		ID:             s.ID,
		Category:       s.Category,
		Severity:       severity,
		BaseConfidence: confidence,
		Predicate:      predicate,
		Fix:            fix,
		Escalation:     escalation,
	}, nil
}
