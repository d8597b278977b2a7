// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package scoring turns raw detector output into findings with a single
// severity and confidence.
package scoring

import (
	"context"
	"math"
	"sort"
	"time"

	"prose-scan/internal/detector"
	"prose-scan/internal/echo"
	"prose-scan/internal/leak"
	"prose-scan/internal/observability"
	"prose-scan/internal/resilience"
)

// Options configures a Scorer
type Options struct {
	// EchoBoost is added to the base confidence of echo matches
	EchoBoost float64

	// LeakSeverity applies to single-rune leak candidates and
	// LeakSequenceSeverity to known bad sequences
	LeakSeverity         detector.Severity
	LeakSequenceSeverity detector.Severity

	// Auxiliary, when set, is consulted for every finding
	Auxiliary        AuxiliarySignal
	AuxiliaryWeight  float64
	AuxiliaryTimeout time.Duration
	Retry            resilience.RetryConfig
}

// DefaultOptions returns the default scoring configuration
func DefaultOptions() Options {
	return Options{
		EchoBoost:            0.1,
		LeakSeverity:         detector.SeverityMajor,
		LeakSequenceSeverity: detector.SeverityCritical,
		AuxiliaryWeight:      0.2,
		AuxiliaryTimeout:     2 * time.Second,
		Retry:                resilience.DefaultRetryConfig(),
	}
}

// Input is everything the scorer normalizes for one document
type Input struct {
	Document string
	Matches  []echo.Classified
	Leaks    []detector.LeakCandidate
	Rules    echo.RuleSource
}

// Stats describes the auxiliary signal for one Score call
type Stats struct {
	AuxiliaryCalls    int `json:"auxiliary_calls" yaml:"auxiliary_calls"`
	AuxiliaryFailures int `json:"auxiliary_failures" yaml:"auxiliary_failures"`
}

// Scorer normalizes detector output. It is safe for concurrent use.
type Scorer struct {
	opts     Options
	breaker  *resilience.CircuitBreaker
	observer *observability.StandardObserver
}

// New creates a Scorer
func New(opts Options, observer *observability.StandardObserver) *Scorer {
	s := &Scorer{opts: opts, observer: observer}
	if opts.Auxiliary != nil {
		cfg := resilience.DefaultBreakerConfig("auxiliary-signal")
		cfg.OnStateChange = func(name string, from, to resilience.BreakerState) {
			observer.Component("scoring").WithField("breaker", name).
				Warnf("auxiliary signal breaker %s -> %s", from, to)
		}
		s.breaker = resilience.NewCircuitBreaker(cfg)
	}
	return s
}

// Normalize maps matches and leak candidates to findings, ordered by start
// offset and then id. It looks at no text beyond what the detectors captured.
func (s *Scorer) Normalize(in Input) []detector.Finding {
	findings := make([]detector.Finding, 0, len(in.Matches)+len(in.Leaks))

	for _, m := range in.Matches {
		rule, ok := in.Rules.Rule(m.RuleID)
		if !ok {
			continue
		}

		f := detector.Finding{
			ID:           detector.FindingID(rule.ID, m.Span),
			Kind:         detector.KindPattern,
			DetectorID:   rule.ID,
			Category:     rule.Category,
			Severity:     rule.Severity,
			BaseSeverity: rule.Severity,
			Confidence:   rule.BaseConfidence,
			Span:         m.Span,
			MatchedText:  m.Text,
		}
		if m.Echo {
			f.Kind = detector.KindEcho
			f.Severity = m.Severity
			f.Confidence = math.Min(1, rule.BaseConfidence+s.opts.EchoBoost)
		}
		if rule.Fix != nil {
			if repl, ok := rule.Fix.Replace(m.Text); ok {
				f.SuggestedFix = repl
				f.HasFix = true
			}
		}
		findings = append(findings, f)
	}

	for _, c := range in.Leaks {
		f := detector.Finding{
			ID:           detector.FindingID(leak.DetectorID, c.Span),
			Kind:         detector.KindLeak,
			DetectorID:   leak.DetectorID,
			Category:     "foreign-character",
			Severity:     s.opts.LeakSeverity,
			BaseSeverity: s.opts.LeakSeverity,
			Confidence:   c.Confidence,
			Span:         c.Span,
			MatchedText:  c.Character,
		}
		if c.BadSequence {
			f.Category = "bad-sequence"
			f.Severity = s.opts.LeakSequenceSeverity
			f.BaseSeverity = s.opts.LeakSequenceSeverity
		}
		if c.Replacement != "" {
			f.SuggestedFix = c.Replacement
			f.HasFix = true
		}
		findings = append(findings, f)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Span.Start != findings[j].Span.Start {
			return findings[i].Span.Start < findings[j].Span.Start
		}
		return findings[i].ID < findings[j].ID
	})
	return findings
}

// Score normalizes in and, when an auxiliary signal is configured, blends its
// answer into each finding's confidence. A failing or slow signal never
// blocks the run: the finding keeps the confidence it already had.
func (s *Scorer) Score(ctx context.Context, in Input) ([]detector.Finding, Stats, error) {
	findings := s.Normalize(in)
	var stats Stats
	if s.opts.Auxiliary == nil {
		return findings, stats, nil
	}

	finish := s.observer.StartTiming("scoring", "auxiliary_signal", "")
	for i := range findings {
		if err := ctx.Err(); err != nil {
			finish(false, nil)
			return nil, stats, err
		}
		stats.AuxiliaryCalls++

		signal, err := s.auxiliary(ctx, findings[i], in.Document)
		if err != nil {
			stats.AuxiliaryFailures++
			s.observer.Component("scoring").WithField("finding_id", findings[i].ID).
				WithError(err).Debug("auxiliary signal unavailable")
			continue
		}
		w := s.opts.AuxiliaryWeight
		findings[i].Confidence = math.Max(0, math.Min(1, (1-w)*findings[i].Confidence+w*signal))
	}
	finish(true, map[string]interface{}{
		"calls":    stats.AuxiliaryCalls,
		"failures": stats.AuxiliaryFailures,
	})

	return findings, stats, nil
}

func (s *Scorer) auxiliary(ctx context.Context, f detector.Finding, document string) (float64, error) {
	return resilience.RetryWithCircuitBreaker(ctx, s.opts.Retry, s.breaker, func(ctx context.Context) (float64, error) {
		callCtx := ctx
		if s.opts.AuxiliaryTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.opts.AuxiliaryTimeout)
			defer cancel()
		}
		return callSignal(callCtx, s.opts.Auxiliary, f, document)
	})
}
