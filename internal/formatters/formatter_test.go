// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package formatters_test

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/formatters"
	_ "prose-scan/internal/formatters/csv"
	_ "prose-scan/internal/formatters/json"
	"prose-scan/internal/formatters/junit"
	_ "prose-scan/internal/formatters/text"
	_ "prose-scan/internal/formatters/yaml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *core.Result {
	return &core.Result{
		RunID:         "run-1",
		Name:          "chapter1.txt",
		FixedDocument: "He nodded. Her eyes widened.",
		Fixes: []detector.Fix{{
			FindingID: "nodded@3-16", OriginalText: "nodded slowly", ReplacementText: "nodded",
			Applied: true, Confidence: 0.9, SpanBefore: detector.Span{Start: 3, End: 16},
		}},
		ReviewQueue: []detector.ReviewItem{
			{FindingID: "script-leak@30-36", Priority: detector.PriorityCritical, Kind: detector.KindLeak,
				DetectorID: "script-leak", Severity: detector.SeverityCritical, Confidence: 0.8,
				Span: detector.Span{Start: 30, End: 36}, MatchedText: "这个", Reason: "no_fix"},
			{FindingID: "eyes-widened@18-34", Priority: detector.PriorityMedium, Kind: detector.KindPattern,
				DetectorID: "eyes-widened", Severity: detector.SeverityMinor, Confidence: 0.7,
				Span: detector.Span{Start: 18, End: 34}, MatchedText: "Her eyes widened", Reason: "no_fix"},
		},
		Summary: core.Summary{
			CountsBySeverity: map[string]int{"critical": 1, "major": 0, "minor": 2},
			CountsByKind:     map[string]int{"pattern": 2, "echo": 0, "leak": 1},
			TotalFindings:    3,
			TotalAutoFixed:   1,
		},
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "junit", "text", "yaml"}, formatters.List())

	info := formatters.GetFormatInfo("json")
	assert.Equal(t, "application/json", info.MimeType)
	assert.Equal(t, ".json", info.Extension)
	assert.Empty(t, formatters.GetFormatInfo("sarif").Name)
	assert.Len(t, formatters.GetSupportedFormats(), 5)

	_, err := formatters.Export("sarif", nil, formatters.FormatterOptions{})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestJSON_SingleResultRoundTrips(t *testing.T) {
	out, err := formatters.Export("json", []*core.Result{sampleResult()}, formatters.FormatterOptions{})
	require.NoError(t, err)

	var decoded core.Result
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "chapter1.txt", decoded.Name)
	assert.Equal(t, detector.PriorityCritical, decoded.ReviewQueue[0].Priority)
	assert.Contains(t, out, `"severity": "critical"`)
}

func TestJSON_PriorityFilter(t *testing.T) {
	opts := formatters.FormatterOptions{Priorities: core.ParsePriorities("critical")}
	out, err := formatters.Export("json", []*core.Result{sampleResult(), sampleResult()}, opts)
	require.NoError(t, err)

	var decoded []core.Result
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Len(t, decoded[0].ReviewQueue, 1)
}

func TestYAML(t *testing.T) {
	out, err := formatters.Export("yaml", []*core.Result{sampleResult(), sampleResult()}, formatters.FormatterOptions{})
	require.NoError(t, err)

	dec := yaml.NewDecoder(strings.NewReader(out))
	count := 0
	for {
		var doc map[string]interface{}
		if err := dec.Decode(&doc); err != nil {
			break
		}
		assert.Equal(t, "chapter1.txt", doc["document"])
		count++
	}
	assert.Equal(t, 2, count)
}

func TestText(t *testing.T) {
	out, err := formatters.Export("text", []*core.Result{sampleResult()}, formatters.FormatterOptions{NoColor: true, Verbose: true})
	require.NoError(t, err)

	assert.Contains(t, out, "=== chapter1.txt ===")
	assert.Contains(t, out, "3 findings (critical 1, major 0, minor 2), 1 auto-fixed, 2 for review")
	assert.Contains(t, out, "[CRITICAL]")
	assert.Contains(t, out, `"nodded slowly" -> "nodded"`)
	assert.NotContains(t, out, "\x1b[")

	empty := &core.Result{Name: "clean.txt"}
	out, err = formatters.Export("text", []*core.Result{empty}, formatters.FormatterOptions{NoColor: true})
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found.")
}

func TestCSV(t *testing.T) {
	out, err := formatters.Export("csv", []*core.Result{sampleResult()}, formatters.FormatterOptions{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Document,Priority,Kind"))
	assert.Equal(t, "chapter1.txt,critical,leak,script-leak,critical,0.80,30,36,no_fix,这个", lines[1])
}

func TestJUnit(t *testing.T) {
	out, err := formatters.Export("junit", []*core.Result{sampleResult()}, formatters.FormatterOptions{})
	require.NoError(t, err)

	var suites junit.TestSuites
	require.NoError(t, xml.Unmarshal([]byte(out), &suites))
	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 2, suites.Failures)
	require.Len(t, suites.TestSuites, 1)
	assert.Nil(t, suites.TestSuites[0].TestCases[1].Failure, "echo has no review items")
}

func TestText_GroupsReviewItemsByKind(t *testing.T) {
	out, err := formatters.Export("text", []*core.Result{sampleResult()}, formatters.FormatterOptions{NoColor: true})
	require.NoError(t, err)

	pattern := strings.Index(out, "PATTERN (1)")
	leak := strings.Index(out, "LEAK (1)")
	require.GreaterOrEqual(t, pattern, 0)
	require.GreaterOrEqual(t, leak, 0)
	assert.NotContains(t, out, "ECHO (")

	// the queue lists the leak first, sections still run pattern then leak
	assert.Less(t, pattern, leak)
	widened := strings.Index(out, "eyes-widened")
	scriptLeak := strings.Index(out, "script-leak")
	assert.True(t, pattern < widened && widened < leak, "pattern item sits under its header")
	assert.Greater(t, scriptLeak, leak)

	opts := formatters.FormatterOptions{NoColor: true, Priorities: core.ParsePriorities("critical")}
	out, err = formatters.Export("text", []*core.Result{sampleResult()}, opts)
	require.NoError(t, err)
	assert.NotContains(t, out, "PATTERN (")
	assert.Contains(t, out, "LEAK (1)")
}

func TestJUnit_FailureContentFollowsKind(t *testing.T) {
	out, err := formatters.Export("junit", []*core.Result{sampleResult()}, formatters.FormatterOptions{})
	require.NoError(t, err)

	var suites junit.TestSuites
	require.NoError(t, xml.Unmarshal([]byte(out), &suites))
	cases := suites.TestSuites[0].TestCases
	require.Len(t, cases, 3)

	require.NotNil(t, cases[0].Failure)
	assert.Equal(t, "pattern", cases[0].Name)
	assert.Contains(t, cases[0].Failure.Content, "eyes-widened")
	assert.NotContains(t, cases[0].Failure.Content, "script-leak")

	require.NotNil(t, cases[2].Failure)
	assert.Equal(t, "critical", cases[2].Failure.Type)
	assert.Contains(t, cases[2].Failure.Content, "script-leak")
}
