// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes validation outcomes as Prometheus metrics.
package metrics

import (
	"fmt"
	"strconv"

	"prose-scan/internal/core"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns a private registry so several collectors can coexist
// in one process and in tests
type Collector struct {
	registry *prometheus.Registry

	findings     *prometheus.CounterVec
	fixes        *prometheus.CounterVec
	rulesSkipped prometheus.Counter
	reviewItems  *prometheus.CounterVec
	documents    *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewCollector creates and registers every metric
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prose_scan_findings_total",
				Help: "Findings that reached remediation, by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		fixes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prose_scan_fixes_total",
				Help: "Fix decisions, by whether the fix was applied",
			},
			[]string{"applied"},
		),
		rulesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prose_scan_rules_skipped_total",
				Help: "Rules skipped because they were malformed or failed at match time",
			},
		),
		reviewItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prose_scan_review_items_total",
				Help: "Findings deferred to human review, by priority",
			},
			[]string{"priority"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prose_scan_documents_total",
				Help: "Documents validated, by outcome",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prose_scan_validation_duration_seconds",
				Help:    "Time taken to validate one document",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
	}

	c.registry.MustRegister(
		c.findings,
		c.fixes,
		c.rulesSkipped,
		c.reviewItems,
		c.documents,
		c.duration,
	)
	return c
}

// Registry returns the registry the metrics live in
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record adds the outcome of one validation run
func (c *Collector) Record(result *core.Result) {
	if c == nil || result == nil {
		return
	}

	for _, f := range result.Findings {
		c.findings.WithLabelValues(string(f.Kind), f.Severity.String()).Inc()
	}
	for _, fix := range result.Fixes {
		c.fixes.WithLabelValues(strconv.FormatBool(fix.Applied)).Inc()
	}
	for _, item := range result.ReviewQueue {
		c.reviewItems.WithLabelValues(item.Priority.String()).Inc()
	}
	c.rulesSkipped.Add(float64(len(result.Summary.RulesSkipped)))
	c.documents.WithLabelValues("ok").Inc()
	c.duration.Observe(float64(result.Summary.DurationMs) / 1000)
}

// RecordFailure counts a document that could not be validated
func (c *Collector) RecordFailure() {
	if c == nil {
		return
	}
	c.documents.WithLabelValues("failed").Inc()
}

// WriteTextfile writes the current values in the text exposition format,
// for the node exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("error writing metrics to %s: %w", path, err)
	}
	return nil
}
