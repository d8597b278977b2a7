// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"fmt"
	"strings"
)

// Severity is the tier of a rule or finding. Higher values are more severe.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityCritical
)

// String returns the lower-case name of the severity
func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the three defined tiers
func (s Severity) Valid() bool {
	return s >= SeverityMinor && s <= SeverityCritical
}

// ParseSeverity converts a name such as "Major" or "critical" to a Severity
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "minor":
		return SeverityMinor, nil
	case "major":
		return SeverityMajor, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityUnknown, fmt.Errorf("unknown severity %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Kind identifies which detector produced a finding
type Kind string

const (
	KindPattern Kind = "pattern"
	KindEcho    Kind = "echo"
	KindLeak    Kind = "leak"
)

// Kinds lists every kind in presentation order
var Kinds = []Kind{KindPattern, KindEcho, KindLeak}

// Priority orders review items for a human reviewer. Higher values come first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Priority) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "low":
		*p = PriorityLow
	case "medium":
		*p = PriorityMedium
	case "high":
		*p = PriorityHigh
	case "critical":
		*p = PriorityCritical
	default:
		return fmt.Errorf("unknown priority %q", string(text))
	}
	return nil
}

// Span is a half-open byte range [Start, End) in a document
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Contains reports whether other lies entirely within s
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

func (s Span) String() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Predicate finds every occurrence of a rule in a text.
// Implementations must be safe for concurrent use and must not retain the text.
type Predicate interface {
	Find(text string) ([]Span, error)
}

// PredicateFunc adapts an ordinary function to the Predicate interface
type PredicateFunc func(text string) ([]Span, error)

// Find calls f(text)
func (f PredicateFunc) Find(text string) ([]Span, error) {
	return f(text)
}

// FixTemplate produces a deterministic replacement for matched text.
// ok is false when no replacement can be produced for this particular match.
type FixTemplate interface {
	Replace(matched string) (replacement string, ok bool)
}

// FixFunc adapts an ordinary function to the FixTemplate interface
type FixFunc func(matched string) (string, bool)

// Replace calls f(matched)
func (f FixFunc) Replace(matched string) (string, bool) {
	return f(matched)
}

// Escalation configures proximity escalation for a rule
type Escalation struct {
	// WindowSize is the token distance below which a repeat is an echo
	WindowSize int

	// EscalatedSeverity replaces the base severity on echoes
	EscalatedSeverity Severity
}

// Rule is a named detection unit. Rules are immutable once loaded into a library.
type Rule struct {
	ID             string
	Category       string
	Severity       Severity
	BaseConfidence float64
	Predicate      Predicate
	Fix            FixTemplate // nil when the rule is review-only
	Escalation     *Escalation // nil when the rule never escalates
}

// Match is one occurrence of a rule in a document
type Match struct {
	RuleID        string `json:"rule_id"`
	Span          Span   `json:"span"`
	Text          string `json:"matched_text"`
	TokenPosition int    `json:"token_position"`
}

// EchoGroup is a chain of matches of one rule where each member after the
// first lies within the rule's window of the member before it.
type EchoGroup struct {
	RuleID  string  `json:"rule_id"`
	Matches []Match `json:"matches"`
}

// LeakFactors holds the four independent leak-scan factor scores, each in [0,1]
type LeakFactors struct {
	Rarity   float64 `json:"rarity" yaml:"rarity"`
	Context  float64 `json:"context" yaml:"context"`
	Sequence float64 `json:"sequence" yaml:"sequence"`
	Boundary float64 `json:"boundary" yaml:"boundary"`
}

// LeakCandidate is a span suspected of being a source-script artifact
type LeakCandidate struct {
	Span             Span        `json:"span"`
	Character        string      `json:"character"`
	Factors          LeakFactors `json:"factors"`
	Confidence       float64     `json:"confidence"`
	BadSequence      bool        `json:"bad_sequence"`
	AbsentFromSource bool        `json:"absent_from_source,omitempty"`
	Replacement      string      `json:"replacement,omitempty"`
}

// Finding is a normalized, confidence-scored quality issue.
// Findings are values; later stages never modify them.
type Finding struct {
	ID           string   `json:"id" yaml:"id"`
	Kind         Kind     `json:"kind" yaml:"kind"`
	DetectorID   string   `json:"rule_or_detector_id" yaml:"rule_or_detector_id"`
	Category     string   `json:"category,omitempty" yaml:"category,omitempty"`
	Severity     Severity `json:"severity" yaml:"severity"`
	BaseSeverity Severity `json:"base_severity" yaml:"base_severity"`
	Confidence   float64  `json:"confidence" yaml:"confidence"`
	Span         Span     `json:"span" yaml:"span"`
	MatchedText  string   `json:"matched_text" yaml:"matched_text"`
	SuggestedFix string   `json:"suggested_fix,omitempty" yaml:"suggested_fix,omitempty"`
	HasFix       bool     `json:"has_fix" yaml:"has_fix"`
}

// FindingID builds the deterministic identifier of a finding
func FindingID(detectorID string, span Span) string {
	return fmt.Sprintf("%s@%d-%d", detectorID, span.Start, span.End)
}

// Fix records what the remediation engine did with one finding
type Fix struct {
	FindingID       string  `json:"finding_id" yaml:"finding_id"`
	OriginalText    string  `json:"original_text" yaml:"original_text"`
	ReplacementText string  `json:"replacement_text" yaml:"replacement_text"`
	Applied         bool    `json:"applied" yaml:"applied"`
	Confidence      float64 `json:"confidence" yaml:"confidence"`
	SpanBefore      Span    `json:"span" yaml:"span"`
	Reason          string  `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ReviewItem is a finding deferred to a human reviewer
type ReviewItem struct {
	FindingID   string   `json:"finding_id" yaml:"finding_id"`
	Priority    Priority `json:"priority" yaml:"priority"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	DetectorID  string   `json:"rule_or_detector_id" yaml:"rule_or_detector_id"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Confidence  float64  `json:"confidence" yaml:"confidence"`
	Span        Span     `json:"span" yaml:"span"`
	MatchedText string   `json:"matched_text" yaml:"matched_text"`
	Reason      string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	SortKey     string   `json:"sort_key" yaml:"sort_key"`
}
