// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package echo

import (
	"math/rand"
	"strings"
	"testing"

	"prose-scan/internal/detector"
	"prose-scan/internal/library"
	"prose-scan/internal/matcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rules map[string]detector.Rule

func (r rules) Rule(id string) (detector.Rule, bool) {
	rule, ok := r[id]
	return rule, ok
}

func escalating(id string, window int) detector.Rule {
	return detector.Rule{
		ID:             id,
		Severity:       detector.SeverityMinor,
		BaseConfidence: 0.7,
		Predicate:      library.MustRegex(`(?i)\bhis eyes widened\b`, false),
		Escalation:     &detector.Escalation{WindowSize: window, EscalatedSeverity: detector.SeverityMajor},
	}
}

// filler returns n tokens of neutral prose
func filler(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func detectIn(t *testing.T, text string, rule detector.Rule) Result {
	t.Helper()
	lib, err := library.New([]detector.Rule{rule})
	require.NoError(t, err)
	res := matcher.New(lib).Match(text)
	return Detect(res.Matches, lib)
}

func TestDetect_SingleOccurrenceNeverEscalates(t *testing.T) {
	res := detectIn(t, "Then his eyes widened. "+filler(20), escalating("eyes-widened", 100))

	require.Len(t, res.Matches, 1)
	assert.False(t, res.Matches[0].Echo)
	assert.Equal(t, detector.SeverityMinor, res.Matches[0].Severity)
	assert.Equal(t, -1, res.Matches[0].Distance)
	assert.Empty(t, res.Groups)
}

func TestDetect_RepeatInsideWindowEscalates(t *testing.T) {
	// "his eyes widened" is three tokens, so the second match starts ten
	// tokens after the first.
	text := "his eyes widened " + filler(7) + " his eyes widened"
	res := detectIn(t, text, escalating("eyes-widened", 100))

	require.Len(t, res.Matches, 2)
	assert.False(t, res.Matches[0].Echo)
	assert.True(t, res.Matches[1].Echo)
	assert.Equal(t, 10, res.Matches[1].Distance)
	assert.Equal(t, detector.SeverityMajor, res.Matches[1].Severity)

	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Groups[0].Matches, 2)
	assert.Equal(t, 1, res.Echoes())
}

func TestDetect_RepeatOutsideWindowDoesNotEscalate(t *testing.T) {
	text := "his eyes widened " + filler(497) + " his eyes widened"
	res := detectIn(t, text, escalating("eyes-widened", 100))

	require.Len(t, res.Matches, 2)
	assert.Equal(t, 500, res.Matches[1].Distance)
	assert.False(t, res.Matches[1].Echo)
	assert.Equal(t, detector.SeverityMinor, res.Matches[1].Severity)
	assert.Empty(t, res.Groups)
}

func TestDetect_WindowIsExclusive(t *testing.T) {
	src := rules{"r": escalating("r", 10)}
	matches := []detector.Match{
		{RuleID: "r", TokenPosition: 0},
		{RuleID: "r", TokenPosition: 10},
		{RuleID: "r", TokenPosition: 19},
	}
	res := Detect(matches, src)
	assert.False(t, res.Matches[1].Echo)
	assert.True(t, res.Matches[2].Echo)
}

func TestDetect_IgnoresRulesWithoutEscalation(t *testing.T) {
	plain := escalating("plain", 100)
	plain.Escalation = nil
	src := rules{"plain": plain}

	res := Detect([]detector.Match{
		{RuleID: "plain", TokenPosition: 1},
		{RuleID: "plain", TokenPosition: 2},
	}, src)
	assert.Zero(t, res.Echoes())
	assert.Empty(t, res.Groups)
}

func TestDetect_OnlySameRuleCounts(t *testing.T) {
	src := rules{"a": escalating("a", 100), "b": escalating("b", 100)}
	res := Detect([]detector.Match{
		{RuleID: "a", TokenPosition: 1},
		{RuleID: "b", TokenPosition: 2},
	}, src)
	assert.Zero(t, res.Echoes())
}

func TestDetect_ChainsSplitIntoGroups(t *testing.T) {
	src := rules{"r": escalating("r", 5)}
	res := Detect([]detector.Match{
		{RuleID: "r", TokenPosition: 0},
		{RuleID: "r", TokenPosition: 3},
		{RuleID: "r", TokenPosition: 6},
		{RuleID: "r", TokenPosition: 40},
		{RuleID: "r", TokenPosition: 80},
		{RuleID: "r", TokenPosition: 82},
	}, src)

	require.Len(t, res.Groups, 2)
	assert.Len(t, res.Groups[0].Matches, 3)
	assert.Len(t, res.Groups[1].Matches, 2)
	assert.Equal(t, 3, res.Echoes())
}

// For random match layouts the first occurrence is never an echo, and a later
// occurrence is an echo exactly when some earlier one is inside the window.
func TestDetect_EchoMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := rules{"a": escalating("a", 25), "b": escalating("b", 60)}

	for round := 0; round < 200; round++ {
		var matches []detector.Match
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			id := "a"
			if rng.Intn(2) == 0 {
				id = "b"
			}
			matches = append(matches, detector.Match{RuleID: id, TokenPosition: rng.Intn(400)})
		}

		res := Detect(matches, src)
		for i, m := range res.Matches {
			window := src[m.RuleID].Escalation.WindowSize
			within, first := false, true
			for j, other := range matches {
				if j == i || other.RuleID != m.RuleID {
					continue
				}
				earlier := other.TokenPosition < m.TokenPosition ||
					(other.TokenPosition == m.TokenPosition && j < i)
				if !earlier {
					continue
				}
				first = false
				if m.TokenPosition-other.TokenPosition < window {
					within = true
				}
			}
			if first {
				assert.False(t, m.Echo, "round %d: first occurrence escalated", round)
			}
			assert.Equal(t, within, m.Echo, "round %d match %d", round, i)
		}
	}
}
