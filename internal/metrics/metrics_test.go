// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/library"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather returns every metric of the named family keyed by its label values
func gather(t *testing.T, c *Collector, name string) map[string]*dto.Metric {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	out := map[string]*dto.Metric{}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				key += lp.GetName() + "=" + lp.GetValue() + ";"
			}
			out[key] = m
		}
	}
	return out
}

func sampleResult() *core.Result {
	return &core.Result{
		Findings: []detector.Finding{
			{Kind: detector.KindPattern, Severity: detector.SeverityMinor},
			{Kind: detector.KindPattern, Severity: detector.SeverityMinor},
			{Kind: detector.KindLeak, Severity: detector.SeverityCritical},
		},
		Fixes: []detector.Fix{{Applied: true}, {Applied: false}, {Applied: false}},
		ReviewQueue: []detector.ReviewItem{
			{Priority: detector.PriorityCritical},
			{Priority: detector.PriorityMedium},
		},
		Summary: core.Summary{
			RulesSkipped: []library.RuleLoadError{{RuleID: "bad", Reason: "invalid pattern"}},
			DurationMs:   12,
		},
	}
}

func TestRecord(t *testing.T) {
	c := NewCollector()
	c.Record(sampleResult())
	c.Record(sampleResult())
	c.RecordFailure()

	findings := gather(t, c, "prose_scan_findings_total")
	assert.Equal(t, 4.0, findings["kind=pattern;severity=minor;"].GetCounter().GetValue())
	assert.Equal(t, 2.0, findings["kind=leak;severity=critical;"].GetCounter().GetValue())

	fixes := gather(t, c, "prose_scan_fixes_total")
	assert.Equal(t, 2.0, fixes["applied=true;"].GetCounter().GetValue())
	assert.Equal(t, 4.0, fixes["applied=false;"].GetCounter().GetValue())

	skipped := gather(t, c, "prose_scan_rules_skipped_total")
	assert.Equal(t, 2.0, skipped[""].GetCounter().GetValue())

	docs := gather(t, c, "prose_scan_documents_total")
	assert.Equal(t, 2.0, docs["status=ok;"].GetCounter().GetValue())
	assert.Equal(t, 1.0, docs["status=failed;"].GetCounter().GetValue())

	duration := gather(t, c, "prose_scan_validation_duration_seconds")
	assert.Equal(t, uint64(2), duration[""].GetHistogram().GetSampleCount())
}

func TestRecord_NilSafe(t *testing.T) {
	var c *Collector
	c.Record(sampleResult())
	c.RecordFailure()

	NewCollector().Record(nil)
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.Record(sampleResult())

	path := filepath.Join(t.TempDir(), "prose_scan.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `prose_scan_findings_total{kind="leak",severity="critical"} 1`)
}
