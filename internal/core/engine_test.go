// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prose-scan/internal/detector"
	"prose-scan/internal/library"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLibrary = `
version: "1"
rules:
  - id: held-breath
    category: stock-phrase
    severity: major
    base_confidence: 0.95
    phrase: "a breath she didn't know she was holding"
    case_insensitive: true
    replacement: "a slow breath"
  - id: let-out-breath
    category: stock-phrase
    severity: minor
    base_confidence: 0.92
    phrase: "let out a breath"
    replacement: "exhaled"
  - id: eyes-widened
    category: safe-structure
    severity: minor
    base_confidence: 0.7
    pattern: '\b(?:his|her) eyes widened\b'
    escalation:
      window_size: 100
      escalated_severity: major
  - id: very-very
    category: filler
    severity: minor
    base_confidence: 0.99
    phrase: "very"
    replacement: "very, very"
  - id: nodded
    category: stock-gesture
    severity: minor
    base_confidence: 0.9
    phrase: "nodded slowly"
    replacement: "nodded"
`

func testLib(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.Parse([]byte(testLibrary))
	require.NoError(t, err)
	return lib
}

func testEngine(t *testing.T, mutate ...func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	e, err := NewEngine(testLib(t), opts)
	require.NoError(t, err)
	return e
}

func filler(n int) string {
	return strings.TrimSpace(strings.Repeat("rain ", n))
}

func findingsOf(r *Result, ruleID string) []detector.Finding {
	var out []detector.Finding
	for _, f := range r.Findings {
		if f.DetectorID == ruleID {
			out = append(out, f)
		}
	}
	return out
}

func TestValidate_SingleOccurrence(t *testing.T) {
	res, err := testEngine(t).Validate(context.Background(), Input{Document: "Then her eyes widened in the dark."})
	require.NoError(t, err)

	fs := findingsOf(res, "eyes-widened")
	require.Len(t, fs, 1)
	assert.Equal(t, detector.KindPattern, fs[0].Kind)
	assert.Equal(t, detector.SeverityMinor, fs[0].Severity)
	assert.InDelta(t, 0.7, fs[0].Confidence, 1e-9)

	require.Len(t, res.ReviewQueue, 1)
	assert.Equal(t, detector.PriorityMedium, res.ReviewQueue[0].Priority)
	assert.Equal(t, 1, res.Summary.TotalFindings)
	assert.Equal(t, 1, res.Summary.CountsByKind["pattern"])
	assert.Equal(t, 0, res.Summary.CountsByKind["echo"])
	assert.NotEmpty(t, res.RunID)
}

func TestValidate_EchoInsideWindow(t *testing.T) {
	doc := "her eyes widened " + filler(7) + " his eyes widened"
	res, err := testEngine(t).Validate(context.Background(), Input{Document: doc})
	require.NoError(t, err)

	fs := findingsOf(res, "eyes-widened")
	require.Len(t, fs, 2)
	assert.Equal(t, detector.KindPattern, fs[0].Kind)
	assert.Equal(t, detector.KindEcho, fs[1].Kind)
	assert.Equal(t, detector.SeverityMajor, fs[1].Severity)
	assert.InDelta(t, 0.8, fs[1].Confidence, 1e-9)
	assert.Equal(t, 1, res.Summary.EchoGroups)
	assert.Equal(t, 1, res.Summary.CountsBySeverity["major"])
}

func TestValidate_EchoOutsideWindow(t *testing.T) {
	doc := "her eyes widened " + filler(497) + " his eyes widened"
	res, err := testEngine(t).Validate(context.Background(), Input{Document: doc})
	require.NoError(t, err)

	for _, f := range findingsOf(res, "eyes-widened") {
		assert.Equal(t, detector.KindPattern, f.Kind)
		assert.Equal(t, detector.SeverityMinor, f.Severity)
	}
	assert.Zero(t, res.Summary.EchoGroups)
}

func TestValidate_OverlapDemotesLowerConfidence(t *testing.T) {
	doc := "She let out a breath she didn't know she was holding."
	res, err := testEngine(t).Validate(context.Background(), Input{Document: doc})
	require.NoError(t, err)

	assert.Equal(t, "She let out a slow breath.", res.FixedDocument)
	assert.Equal(t, 1, res.Summary.TotalAutoFixed)

	require.Len(t, res.ReviewQueue, 1)
	item := res.ReviewQueue[0]
	assert.Equal(t, "let-out-breath", item.DetectorID)
	assert.Equal(t, "overlap", item.Reason)
	assert.Equal(t, detector.PriorityMedium, item.Priority)
}

func TestValidate_ThresholdInclusive(t *testing.T) {
	res, err := testEngine(t).Validate(context.Background(), Input{Document: "He nodded slowly."})
	require.NoError(t, err)
	assert.Equal(t, "He nodded.", res.FixedDocument)
}

func TestValidate_SelfRetriggeringFixIsDeferred(t *testing.T) {
	res, err := testEngine(t).Validate(context.Background(), Input{Document: "It was very cold."})
	require.NoError(t, err)

	assert.Equal(t, "It was very cold.", res.FixedDocument)
	require.Len(t, res.ReviewQueue, 1)
	assert.Equal(t, "retrigger", res.ReviewQueue[0].Reason)
}

func TestValidate_Idempotent(t *testing.T) {
	engine := testEngine(t)
	doc := "She let out a breath. He nodded slowly. It was very cold. Later she let out a breath again."

	first, err := engine.Validate(context.Background(), Input{Document: doc})
	require.NoError(t, err)
	require.Positive(t, first.Summary.TotalAutoFixed)

	fixedRules := appliedRules(first)
	require.NotEmpty(t, fixedRules)

	second, err := engine.Validate(context.Background(), Input{Document: first.FixedDocument})
	require.NoError(t, err)
	for rule := range appliedRules(second) {
		assert.False(t, fixedRules[rule], "rule %s fired again on its own replacement", rule)
	}
}

func TestValidate_CombinedFixesAreIdempotent(t *testing.T) {
	lib, err := library.Parse([]byte(`
version: "1"
rules:
  - id: qa
    category: filler
    severity: major
    base_confidence: 0.95
    pattern: 'qa|dd'
    replacement: "d"
`))
	require.NoError(t, err)
	engine, err := NewEngine(lib, DefaultOptions())
	require.NoError(t, err)

	doc := "x qaqa y"
	first, err := engine.Validate(context.Background(), Input{Document: doc})
	require.NoError(t, err)
	assert.Equal(t, doc, first.FixedDocument)
	assert.Zero(t, first.Summary.TotalAutoFixed)
	require.Len(t, first.Fixes, 2)
	for _, fix := range first.Fixes {
		assert.Equal(t, "retrigger", fix.Reason)
	}

	second, err := engine.Validate(context.Background(), Input{Document: first.FixedDocument})
	require.NoError(t, err)
	assert.Empty(t, second.AppliedFixes())
}

// appliedRules returns the ids of rules whose fixes changed the document
func appliedRules(r *Result) map[string]bool {
	byFinding := make(map[string]string, len(r.Findings))
	for _, f := range r.Findings {
		byFinding[f.ID] = f.DetectorID
	}
	out := map[string]bool{}
	for _, fix := range r.AppliedFixes() {
		out[byFinding[fix.FindingID]] = true
	}
	return out
}

func TestValidate_Deterministic(t *testing.T) {
	engine := testEngine(t)
	doc := "She let out a breath she didn't know she was holding. Her eyes widened. " +
		"He nodded slowly, very slowly, and his eyes widened. 这个 was strange."

	first, err := engine.Validate(context.Background(), Input{Document: doc})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Validate(context.Background(), Input{Document: doc})
		require.NoError(t, err)
		assert.Equal(t, first.FixedDocument, again.FixedDocument)
		assert.Equal(t, first.Fixes, again.Fixes)
		assert.Equal(t, first.ReviewQueue, again.ReviewQueue)
	}
}

func TestValidate_LeakFixedAndReversible(t *testing.T) {
	engine := testEngine(t)
	doc := "東京这个町"

	res, err := engine.Validate(context.Background(), Input{Document: doc, SourceReference: "在东京这个城市"})
	require.NoError(t, err)

	assert.Equal(t, "東京この町", res.FixedDocument)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, detector.KindLeak, res.Findings[0].Kind)
	assert.Equal(t, detector.SeverityCritical, res.Findings[0].Severity)
}

func TestValidate_LeakInConnectorContextIsDropped(t *testing.T) {
	res, err := testEngine(t).Validate(context.Background(), Input{Document: "ね、これは这ですよ。"})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Equal(t, 1, res.Summary.LeaksDiscarded)
}

func TestValidate_RejectsInvalidUTF8(t *testing.T) {
	_, err := testEngine(t).Validate(context.Background(), Input{Document: "bad \xff byte"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDocument))
	assert.True(t, errors.Is(err, library.ErrValidationFailed))
}

func TestValidate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testEngine(t).Validate(ctx, Input{Document: "He nodded slowly."})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate_BrokenRuleStillReturnsResult(t *testing.T) {
	broken := detector.Rule{
		ID: "broken", Severity: detector.SeverityMajor, BaseConfidence: 0.9,
		Predicate: detector.PredicateFunc(func(string) ([]detector.Span, error) {
			return nil, errors.New("boom")
		}),
	}
	good := detector.Rule{
		ID: "good", Severity: detector.SeverityMinor, BaseConfidence: 0.5,
		Predicate: library.MustRegex(`rain`, false),
	}
	lib, err := library.New([]detector.Rule{broken, good, {ID: "no-predicate", Severity: detector.SeverityMinor}})
	require.NoError(t, err)

	res, err := ValidateDocument(context.Background(), lib, Input{Document: "rain and rain"}, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.Findings, 2)

	var skipped []string
	for _, s := range res.Summary.RulesSkipped {
		skipped = append(skipped, s.RuleID)
	}
	assert.ElementsMatch(t, []string{"broken", "no-predicate"}, skipped)
}

func TestNewEngine_Errors(t *testing.T) {
	_, err := NewEngine(nil, DefaultOptions())
	assert.True(t, errors.Is(err, library.ErrValidationFailed))

	opts := DefaultOptions()
	opts.FixThreshold = 2
	_, err = NewEngine(testLib(t), opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.ScriptProfile = "xx-yy"
	_, err = NewEngine(testLib(t), opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.LeakWeights.Boundary = 0.5
	_, err = NewEngine(testLib(t), opts)
	assert.Error(t, err)
}

func TestValidate_KindsFilter(t *testing.T) {
	engine := testEngine(t, func(o *Options) { o.Kinds = ParseKinds([]string{"leak"}) })
	res, err := engine.Validate(context.Background(), Input{Document: "He nodded slowly. 東京这个町"})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, detector.KindLeak, res.Findings[0].Kind)
}

type suppressAll struct{ rule string }

func (s suppressAll) IsSuppressed(f detector.Finding, document string) (bool, string) {
	return f.DetectorID == s.rule, "accepted-" + s.rule
}

func TestValidate_Suppression(t *testing.T) {
	engine := testEngine(t, func(o *Options) { o.Suppressor = suppressAll{rule: "nodded"} })
	res, err := engine.Validate(context.Background(), Input{Document: "He nodded slowly."})
	require.NoError(t, err)

	assert.Equal(t, "He nodded slowly.", res.FixedDocument)
	assert.Empty(t, res.Findings)
	require.Len(t, res.Suppressed, 1)
	assert.Equal(t, "accepted-nodded", res.Suppressed[0].SuppressedBy)
	assert.Equal(t, 1, res.Summary.Suppressed)
}

func TestValidateBatch(t *testing.T) {
	engine := testEngine(t)
	inputs := []Input{
		{Name: "ch1", Document: "He nodded slowly."},
		{Name: "ch2", Document: "bad \xff"},
		{Name: "ch3", Document: "It rained."},
	}

	results := engine.ValidateBatch(context.Background(), inputs)
	require.Len(t, results, 3)

	assert.Equal(t, "ch1", results[0].Name)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "He nodded.", results[0].Result.FixedDocument)

	assert.ErrorIs(t, results[1].Err, ErrInvalidDocument)

	require.NoError(t, results[2].Err)
	assert.Equal(t, "It rained.", results[2].Result.FixedDocument)
}

func TestParseKinds(t *testing.T) {
	all := ParseKinds(nil)
	for _, k := range detector.Kinds {
		assert.True(t, all[k])
	}

	some := ParseKinds([]string{" echo ", "unknown"})
	assert.True(t, some[detector.KindEcho])
	assert.True(t, some[detector.KindPattern])
	assert.False(t, some[detector.KindLeak])
}

func TestParsePriorities(t *testing.T) {
	got := ParsePriorities("High, critical")
	assert.True(t, got[detector.PriorityHigh])
	assert.True(t, got[detector.PriorityCritical])
	assert.False(t, got[detector.PriorityLow])

	assert.True(t, ParsePriorities("all")[detector.PriorityLow])
}
