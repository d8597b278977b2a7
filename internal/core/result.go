// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"prose-scan/internal/detector"
	"prose-scan/internal/library"
)

// Result is the structured outcome of one validation run
type Result struct {
	RunID         string                `json:"run_id" yaml:"run_id"`
	Name          string                `json:"document,omitempty" yaml:"document,omitempty"`
	FixedDocument string                `json:"fixed_document" yaml:"fixed_document"`
	Fixes         []detector.Fix        `json:"fixes" yaml:"fixes"`
	ReviewQueue   []detector.ReviewItem `json:"review_queue" yaml:"review_queue"`
	Summary       Summary               `json:"summary" yaml:"summary"`

	// Findings are every finding that reached remediation, in document order
	Findings []detector.Finding `json:"findings" yaml:"findings"`

	// Suppressed are findings dropped because a reviewer accepted them
	Suppressed []SuppressedFinding `json:"suppressed,omitempty" yaml:"suppressed,omitempty"`
}

// SuppressedFinding is a finding hidden by a suppression rule
type SuppressedFinding struct {
	Finding      detector.Finding `json:"finding" yaml:"finding"`
	SuppressedBy string           `json:"suppressed_by" yaml:"suppressed_by"`
}

// Summary aggregates a run
type Summary struct {
	CountsBySeverity  map[string]int          `json:"counts_by_severity" yaml:"counts_by_severity"`
	CountsByKind      map[string]int          `json:"counts_by_kind" yaml:"counts_by_kind"`
	TotalFindings     int                     `json:"total_findings" yaml:"total_findings"`
	TotalAutoFixed    int                     `json:"total_auto_fixed" yaml:"total_auto_fixed"`
	RulesSkipped      []library.RuleLoadError `json:"rules_skipped" yaml:"rules_skipped"`
	EchoGroups        int                     `json:"echo_groups" yaml:"echo_groups"`
	LeaksDiscarded    int                     `json:"leaks_discarded" yaml:"leaks_discarded"`
	Suppressed        int                     `json:"suppressed" yaml:"suppressed"`
	AuxiliaryFailures int                     `json:"auxiliary_failures,omitempty" yaml:"auxiliary_failures,omitempty"`
	DurationMs        int64                   `json:"duration_ms" yaml:"duration_ms"`
}

func newSummary() Summary {
	s := Summary{
		CountsBySeverity: make(map[string]int, 3),
		CountsByKind:     make(map[string]int, len(detector.Kinds)),
		RulesSkipped:     []library.RuleLoadError{},
	}
	for _, sev := range []detector.Severity{detector.SeverityCritical, detector.SeverityMajor, detector.SeverityMinor} {
		s.CountsBySeverity[sev.String()] = 0
	}
	for _, k := range detector.Kinds {
		s.CountsByKind[string(k)] = 0
	}
	return s
}

func (s *Summary) tally(findings []detector.Finding, autoFixed int) {
	for _, f := range findings {
		s.CountsBySeverity[f.Severity.String()]++
		s.CountsByKind[string(f.Kind)]++
	}
	s.TotalFindings = len(findings)
	s.TotalAutoFixed = autoFixed
}

// AppliedFixes returns only the fixes that changed the document
func (r *Result) AppliedFixes() []detector.Fix {
	var out []detector.Fix
	for _, f := range r.Fixes {
		if f.Applied {
			out = append(out, f)
		}
	}
	return out
}
