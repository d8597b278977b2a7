// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"errors"
	"testing"

	"prose-scan/internal/detector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phraseRule(id, phrase string) detector.Rule {
	p, err := Phrase(phrase, true)
	if err != nil {
		panic(err)
	}
	return detector.Rule{ID: id, Severity: detector.SeverityMinor, BaseConfidence: 0.8, Predicate: p}
}

func TestNew_EmptyLibrary(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestNew_DuplicateIDsAreStructural(t *testing.T) {
	_, err := New([]detector.Rule{phraseRule("a", "x"), phraseRule("a", "y")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestNew_SkipsMalformedRules(t *testing.T) {
	bad := []detector.Rule{
		{ID: "no-predicate", Severity: detector.SeverityMinor, BaseConfidence: 0.5},
		{ID: "bad-severity", Predicate: MustRegex("x", false), BaseConfidence: 0.5},
		{ID: "bad-confidence", Predicate: MustRegex("x", false), Severity: detector.SeverityMajor, BaseConfidence: 1.5},
		{
			ID: "bad-window", Predicate: MustRegex("x", false), Severity: detector.SeverityMajor, BaseConfidence: 0.5,
			Escalation: &detector.Escalation{WindowSize: 0, EscalatedSeverity: detector.SeverityCritical},
		},
		{
			ID: "no-escalated-severity", Predicate: MustRegex("x", false), Severity: detector.SeverityMajor, BaseConfidence: 0.5,
			Escalation: &detector.Escalation{WindowSize: 10},
		},
		{Predicate: MustRegex("x", false), Severity: detector.SeverityMajor},
	}
	lib, err := New(append(bad, phraseRule("good", "sighed deeply")))
	require.NoError(t, err)

	assert.Equal(t, 1, lib.Len())
	_, ok := lib.Rule("good")
	assert.True(t, ok)

	skipped := lib.Skipped()
	require.Len(t, skipped, len(bad))
	ids := make([]string, 0, len(skipped))
	for _, s := range skipped {
		ids = append(ids, s.RuleID)
	}
	assert.Contains(t, ids, "no-predicate")
	assert.Contains(t, ids, "bad-window")
	assert.Contains(t, ids, "#5")
}

func TestNew_AllRulesSkipped(t *testing.T) {
	_, err := New([]detector.Rule{{ID: "broken"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestNew_CopiesEscalation(t *testing.T) {
	esc := &detector.Escalation{WindowSize: 50, EscalatedSeverity: detector.SeverityMajor}
	rule := phraseRule("echo", "a beat passed")
	rule.Escalation = esc

	lib, err := New([]detector.Rule{rule})
	require.NoError(t, err)

	esc.WindowSize = 1
	got, _ := lib.Rule("echo")
	assert.Equal(t, 50, got.Escalation.WindowSize)
}

func TestPhrase_WordBoundaries(t *testing.T) {
	p, err := Phrase("nod", true)
	require.NoError(t, err)

	spans, err := p.Find("The synod voted. He gave a Nod.")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, detector.Span{Start: 27, End: 30}, spans[0])
}

func TestRegex_IgnoresEmptyMatches(t *testing.T) {
	p, err := Regex(`a*`, false)
	require.NoError(t, err)

	spans, err := p.Find("baab")
	require.NoError(t, err)
	assert.Equal(t, []detector.Span{{Start: 1, End: 3}}, spans)
}

func TestLiteralFix_PreservesCase(t *testing.T) {
	fix := LiteralFix("exhaled", true)

	out, ok := fix.Replace("Let out a breath")
	require.True(t, ok)
	assert.Equal(t, "Exhaled", out)

	out, _ = fix.Replace("LET OUT A BREATH")
	assert.Equal(t, "EXHALED", out)

	out, _ = fix.Replace("let out a breath")
	assert.Equal(t, "exhaled", out)
}
