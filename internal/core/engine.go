// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package core wires the detection, scoring and remediation stages into a
// single validation run per document.
package core

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"prose-scan/internal/detector"
	"prose-scan/internal/echo"
	"prose-scan/internal/leak"
	"prose-scan/internal/library"
	"prose-scan/internal/matcher"
	"prose-scan/internal/observability"
	"prose-scan/internal/remediation"
	"prose-scan/internal/resilience"
	"prose-scan/internal/review"
	"prose-scan/internal/scoring"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidDocument is returned for documents that are not valid UTF-8 text
var ErrInvalidDocument = fmt.Errorf("%w: document is not valid UTF-8 text", library.ErrValidationFailed)

// Input is one document to validate
type Input struct {
	// Name identifies the document in logs and batch results
	Name string

	Document string

	// SourceReference is the source-language original, when available
	SourceReference string
}

// Engine validates documents against a shared, read-only pattern library.
// One Engine may validate many documents concurrently.
type Engine struct {
	lib        *library.Library
	matcher    *matcher.Matcher
	scanner    *leak.Scanner
	scorer     *scoring.Scorer
	remediator *remediation.Engine
	opts       Options
	observer   *observability.StandardObserver
}

// NewEngine checks the library and options and builds an Engine. A nil or
// empty library fails with library.ErrValidationFailed.
func NewEngine(lib *library.Library, opts Options) (*Engine, error) {
	if lib.Len() == 0 {
		return nil, fmt.Errorf("%w: pattern library is empty", library.ErrValidationFailed)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine options: %w", err)
	}

	charset := opts.Charset
	if charset == nil {
		var err error
		if charset, err = leak.Profile(opts.ScriptProfile); err != nil {
			return nil, err
		}
	}
	scanner, err := leak.NewScanner(charset, opts.leakOptions())
	if err != nil {
		return nil, err
	}

	scoringOpts := scoring.DefaultOptions()
	scoringOpts.EchoBoost = opts.EchoConfidenceBoost
	scoringOpts.LeakSequenceSeverity = opts.LeakSequenceSeverity
	scoringOpts.Auxiliary = opts.Auxiliary
	scoringOpts.AuxiliaryWeight = opts.AuxiliaryWeight
	scoringOpts.AuxiliaryTimeout = opts.AuxiliaryTimeout
	scoringOpts.Retry = resilience.DefaultRetryConfig()
	scoringOpts.Retry.MaxRetries = opts.AuxiliaryRetries

	remediator, err := remediation.New(remediation.Options{
		FixThreshold: opts.FixThreshold,
		Rechecker:    &rechecker{lib: lib, scanner: scanner},
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		lib:        lib,
		matcher:    matcher.New(lib),
		scanner:    scanner,
		scorer:     scoring.New(scoringOpts, opts.Observer),
		remediator: remediator,
		opts:       opts,
		observer:   opts.Observer,
	}
	for _, skipped := range lib.Skipped() {
		e.warnSkipped(skipped, "")
	}
	return e, nil
}

// ValidateDocument is a convenience wrapper for a single run
func ValidateDocument(ctx context.Context, lib *library.Library, in Input, opts Options) (*Result, error) {
	engine, err := NewEngine(lib, opts)
	if err != nil {
		return nil, err
	}
	return engine.Validate(ctx, in)
}

// Validate runs every stage over one document. The document string is never
// modified; the fixed text is returned in the Result. A cancelled context is
// honoured between stages.
func (e *Engine) Validate(ctx context.Context, in Input) (*Result, error) {
	if !utf8.ValidString(in.Document) || !utf8.ValidString(in.SourceReference) {
		return nil, ErrInvalidDocument
	}

	start := time.Now()
	finishRun := e.observer.StartTiming("core", "validate", in.Name)
	result := &Result{
		RunID:    uuid.NewString(),
		Name:     in.Name,
		Summary:  newSummary(),
		Findings: []detector.Finding{},
	}

	fail := func(err error) (*Result, error) {
		finishRun(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	// pattern matching and echo escalation
	var classified []echo.Classified
	if e.opts.enabled(detector.KindPattern) || e.opts.enabled(detector.KindEcho) {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		finish := e.observer.StartTiming("matcher", "match", in.Name)
		matched := e.matcher.Match(in.Document)
		finish(true, map[string]interface{}{"count": len(matched.Matches), "tokens": matched.Tokens.Len()})
		for _, skipped := range matched.Skipped {
			e.warnSkipped(skipped, in.Name)
		}
		result.Summary.RulesSkipped = append(e.lib.Skipped(), matched.Skipped...)

		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		finish = e.observer.StartTiming("echo", "detect", in.Name)
		echoes := echo.Detect(matched.Matches, e.lib)
		if !e.opts.enabled(detector.KindEcho) {
			echoes = flatten(echoes)
		}
		finish(true, map[string]interface{}{"count": echoes.Echoes(), "groups": len(echoes.Groups)})

		for _, m := range echoes.Matches {
			if m.Echo || e.opts.enabled(detector.KindPattern) {
				classified = append(classified, m)
			}
		}
		result.Summary.EchoGroups = len(echoes.Groups)
	} else {
		result.Summary.RulesSkipped = e.lib.Skipped()
	}

	// script leaks
	var leaks []detector.LeakCandidate
	if e.opts.enabled(detector.KindLeak) {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		source := ""
		if e.opts.UseSourceReference {
			source = in.SourceReference
		}
		finish := e.observer.StartTiming("leak", "scan", in.Name)
		scanned := e.scanner.Scan(in.Document, source)
		finish(true, map[string]interface{}{"count": len(scanned.Candidates), "discarded": scanned.Discarded})
		leaks = scanned.Candidates
		result.Summary.LeaksDiscarded = scanned.Discarded
	}

	// scoring
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	finish := e.observer.StartTiming("scoring", "score", in.Name)
	findings, stats, err := e.scorer.Score(ctx, scoring.Input{
		Document: in.Document,
		Matches:  classified,
		Leaks:    leaks,
		Rules:    e.lib,
	})
	if err != nil {
		finish(false, nil)
		return fail(err)
	}
	finish(true, map[string]interface{}{"count": len(findings)})
	result.Summary.AuxiliaryFailures = stats.AuxiliaryFailures

	findings = e.suppress(findings, in.Document, result)

	// remediation and review
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	finish = e.observer.StartTiming("remediation", "remediate", in.Name)
	outcome := e.remediator.Remediate(in.Document, findings)
	finish(true, map[string]interface{}{"applied": outcome.Applied(), "deferred": len(outcome.Deferred)})

	result.Findings = findings
	result.FixedDocument = outcome.FixedDocument
	result.Fixes = outcome.Fixes
	result.ReviewQueue = review.Build(outcome.Deferred)
	result.Summary.tally(findings, outcome.Applied())
	result.Summary.DurationMs = time.Since(start).Milliseconds()

	finishRun(true, map[string]interface{}{
		"run_id":     result.RunID,
		"findings":   result.Summary.TotalFindings,
		"auto_fixed": result.Summary.TotalAutoFixed,
		"review":     len(result.ReviewQueue),
	})
	return result, nil
}

// suppress moves accepted findings out of the run
func (e *Engine) suppress(findings []detector.Finding, document string, result *Result) []detector.Finding {
	if e.opts.Suppressor == nil {
		return findings
	}
	kept := findings[:0:0]
	for _, f := range findings {
		if ok, by := e.opts.Suppressor.IsSuppressed(f, document); ok {
			result.Suppressed = append(result.Suppressed, SuppressedFinding{Finding: f, SuppressedBy: by})
			continue
		}
		kept = append(kept, f)
	}
	result.Summary.Suppressed = len(result.Suppressed)
	return kept
}

func (e *Engine) warnSkipped(skipped library.RuleLoadError, document string) {
	entry := e.observer.Component("library").WithFields(logrus.Fields{
		"rule_id": skipped.RuleID,
		"reason":  skipped.Reason,
	})
	if document != "" {
		entry = entry.WithField("document", document)
	}
	if skipped.Cause != nil {
		entry = entry.WithError(skipped.Cause)
	}
	entry.Warn("rule skipped")
}

// flatten drops echo escalation, for runs with echo detection disabled
func flatten(res echo.Result) echo.Result {
	out := echo.Result{Matches: make([]echo.Classified, len(res.Matches))}
	for i, m := range res.Matches {
		m.Echo = false
		out.Matches[i] = m
	}
	return out
}
