// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"prose-scan/internal/detector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLibrary = `
version: "1"
rules:
  - id: held-breath
    category: stock-phrase
    severity: major
    base_confidence: 0.95
    phrase: "a breath he didn't know he was holding"
    case_insensitive: true
    replacement: "a long breath"
  - id: couldnt-help-but
    category: stock-phrase
    severity: minor
    pattern: '(?i)\bcouldn''t help but (\w+)'
    replacement_template: 'had to $1'
  - id: eyes-widened
    category: safe-structure
    severity: minor
    base_confidence: 0.6
    phrase: "eyes widened"
    escalation:
      window_size: 200
      escalated_severity: major
  - id: broken-regex
    severity: minor
    pattern: '(unclosed'
  - id: bad-severity
    severity: blocker
    phrase: "whatever"
  - id: broken-escalation
    severity: minor
    phrase: "a beat"
    escalation:
      window_size: 10
`

func TestParse_SampleLibrary(t *testing.T) {
	lib, err := Parse([]byte(sampleLibrary))
	require.NoError(t, err)

	assert.Equal(t, 3, lib.Len())

	skipped := map[string]string{}
	for _, s := range lib.Skipped() {
		skipped[s.RuleID] = s.Reason
	}
	assert.Equal(t, "invalid pattern", skipped["broken-regex"])
	assert.Equal(t, "invalid severity", skipped["bad-severity"])
	assert.Equal(t, "escalation is missing escalated_severity", skipped["broken-escalation"])

	rule, ok := lib.Rule("eyes-widened")
	require.True(t, ok)
	require.NotNil(t, rule.Escalation)
	assert.Equal(t, 200, rule.Escalation.WindowSize)
	assert.Equal(t, detector.SeverityMajor, rule.Escalation.EscalatedSeverity)
	assert.Nil(t, rule.Fix)

	rule, _ = lib.Rule("couldnt-help-but")
	assert.Equal(t, DefaultBaseConfidence, rule.BaseConfidence)
	out, ok := rule.Fix.Replace("couldn't help but smile")
	require.True(t, ok)
	assert.Equal(t, "had to smile", out)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::not yaml:::\n\t- ["))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleLibrary), 0600))

	lib, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, lib.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_BundledSample(t *testing.T) {
	lib, err := LoadFile(filepath.Join("..", "..", "examples", "patterns.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6, lib.Len())
	assert.Empty(t, lib.Skipped())

	rule, ok := lib.Rule("nodded-slowly")
	require.True(t, ok)
	require.NotNil(t, rule.Fix)
}
