// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package leak scans translated text for characters that leaked through from
// the source script.
package leak

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"prose-scan/internal/detector"
)

// DetectorID identifies leak findings
const DetectorID = "script-leak"

const epsilon = 1e-9

// Options configures a Scanner
type Options struct {
	Weights Weights

	// MinConfidence discards weaker candidates
	MinConfidence float64

	// ContextWindow is the number of runes examined on each side of a
	// candidate for connector characters
	ContextWindow int

	// SourceAbsentFactor scales the confidence of candidates that do not
	// occur in the source reference
	SourceAbsentFactor float64
}

// DefaultOptions returns the default scanner configuration
func DefaultOptions() Options {
	return Options{
		Weights:            DefaultWeights(),
		MinConfidence:      0.7,
		ContextWindow:      4,
		SourceAbsentFactor: 0.5,
	}
}

// Validate checks the options
func (o Options) Validate() error {
	if err := o.Weights.Validate(); err != nil {
		return err
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("leak min confidence %v outside [0,1]", o.MinConfidence)
	}
	if o.ContextWindow <= 0 {
		return fmt.Errorf("leak context window must be positive, got %d", o.ContextWindow)
	}
	if o.SourceAbsentFactor < 0 || o.SourceAbsentFactor > 1 {
		return fmt.Errorf("source absent factor %v outside [0,1]", o.SourceAbsentFactor)
	}
	return nil
}

// Scanner finds leak candidates. It is read-only after construction.
type Scanner struct {
	charset *Charset
	opts    Options
}

// NewScanner creates a Scanner
func NewScanner(charset *Charset, opts Options) (*Scanner, error) {
	if charset == nil {
		return nil, errors.New("leak scanner requires a charset")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{charset: charset, opts: opts}, nil
}

// Charset returns the scanner's reference character classes
func (s *Scanner) Charset() *Charset {
	return s.charset
}

// Result is the output of Scan
type Result struct {
	Candidates []detector.LeakCandidate

	// Discarded counts candidates below the minimum confidence
	Discarded int
}

// Scan returns the leak candidates of text at or above the minimum
// confidence, in document order. When source is not empty, candidates that
// never occur in it are marked and down-weighted.
func (s *Scanner) Scan(text, source string) Result {
	runes, offsets := decode(text)

	var res Result
	for i := 0; i < len(runes); {
		end := i + 1
		bad := false
		if seq := s.charset.sequenceAt(text, offsets[i]); seq != "" {
			end = i + utf8.RuneCountInString(seq)
			bad = true
		} else if !s.charset.IsForeign(runes[i]) {
			i++
			continue
		}

		cand := s.candidate(text, runes, offsets, i, end, bad)
		i = end

		if source != "" && !strings.Contains(source, cand.Character) {
			cand.AbsentFromSource = true
			cand.Confidence *= s.opts.SourceAbsentFactor
		}
		if cand.Confidence+epsilon < s.opts.MinConfidence {
			res.Discarded++
			continue
		}
		res.Candidates = append(res.Candidates, cand)
	}

	return res
}

// candidate scores runes[start:end]
func (s *Scanner) candidate(text string, runes []rune, offsets []int, start, end int, bad bool) detector.LeakCandidate {
	span := detector.Span{Start: offsets[start], End: offsets[end]}
	character := text[span.Start:span.End]

	factors := detector.LeakFactors{
		Rarity:   s.rarity(runes[start:end]),
		Context:  s.context(runes, start, end),
		Boundary: s.boundary(runes, start, end),
	}
	if bad {
		factors.Sequence = 1
	}

	cand := detector.LeakCandidate{
		Span:        span,
		Character:   character,
		Factors:     factors,
		Confidence:  s.opts.Weights.Combine(factors),
		BadSequence: bad,
	}
	if repl, ok := s.charset.Replacement(character); ok {
		cand.Replacement = repl
	}
	return cand
}

func (s *Scanner) rarity(runes []rune) float64 {
	best := 0.0
	for _, r := range runes {
		best = math.Max(best, s.charset.rarity(r))
	}
	return best
}

// context is 1 minus the share of connector runes around the candidate
func (s *Scanner) context(runes []rune, start, end int) float64 {
	examined, connectors := 0, 0
	for i := max(0, start-s.opts.ContextWindow); i < start; i++ {
		examined++
		if s.charset.isConnector(runes[i]) {
			connectors++
		}
	}
	for i := end; i < min(len(runes), end+s.opts.ContextWindow); i++ {
		examined++
		if s.charset.isConnector(runes[i]) {
			connectors++
		}
	}
	if examined == 0 {
		return 1
	}
	return 1 - float64(connectors)/float64(examined)
}

// boundary is low when the candidate sits next to more foreign script. A
// third script on either side wins over a foreign one.
func (s *Scanner) boundary(runes []rune, start, end int) float64 {
	left, right := classNeutral, classNeutral
	if start > 0 {
		left = s.charset.classify(runes[start-1])
	}
	if end < len(runes) {
		right = s.charset.classify(runes[end])
	}

	switch {
	case left == classThird || right == classThird:
		return 1
	case left == classForeign || right == classForeign:
		return 0.1
	default:
		return 1
	}
}

// Flags reports whether text contains anything the scanner would consider a
// candidate, regardless of confidence
func (s *Scanner) Flags(text string) bool {
	return s.charset.Contains(text)
}

// Spans returns every foreign rune and bad sequence in text, in document
// order and regardless of confidence
func (s *Scanner) Spans(text string) []detector.Span {
	var out []detector.Span
	for i := 0; i < len(text); {
		if seq := s.charset.sequenceAt(text, i); seq != "" {
			out = append(out, detector.Span{Start: i, End: i + len(seq)})
			i += len(seq)
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if s.charset.IsForeign(r) {
			out = append(out, detector.Span{Start: i, End: i + size})
		}
		i += size
	}
	return out
}

// decode returns the runes of text and the byte offset of each rune, with a
// final entry for len(text)
func decode(text string) ([]rune, []int) {
	runes := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		runes = append(runes, r)
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	return runes, offsets
}
