// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"prose-scan/internal/detector"
)

// regexPredicate matches a compiled regular expression
type regexPredicate struct {
	re *regexp.Regexp
}

// Regex compiles pattern into a Predicate. Empty matches are ignored.
func Regex(pattern string, caseInsensitive bool) (detector.Predicate, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return &regexPredicate{re: re}, nil
}

// MustRegex is Regex for patterns known at compile time
func MustRegex(pattern string, caseInsensitive bool) detector.Predicate {
	p, err := Regex(pattern, caseInsensitive)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *regexPredicate) Find(text string) ([]detector.Span, error) {
	locs := p.re.FindAllStringIndex(text, -1)
	spans := make([]detector.Span, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			spans = append(spans, detector.Span{Start: loc[0], End: loc[1]})
		}
	}
	return spans, nil
}

// Phrase matches a literal phrase. Word boundaries are enforced on edges of the
// phrase that are word characters, so "nod" does not fire inside "synod".
func Phrase(phrase string, caseInsensitive bool) (detector.Predicate, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, fmt.Errorf("empty phrase")
	}

	pattern := regexp.QuoteMeta(phrase)
	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if isASCIIWord(first) {
		pattern = `\b` + pattern
	}
	if isASCIIWord(last) {
		pattern += `\b`
	}
	return Regex(pattern, caseInsensitive)
}

func isASCIIWord(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

// LiteralFix always replaces the match with the same text. With preserveCase
// the capitalisation of the matched text's first letter is carried over.
func LiteralFix(replacement string, preserveCase bool) detector.FixTemplate {
	return detector.FixFunc(func(matched string) (string, bool) {
		if preserveCase {
			return matchCase(matched, replacement), true
		}
		return replacement, true
	})
}

// RegexFix expands template ($1, ${name}) against the matched text using re.
// It reports false when re does not match the text it is given.
func RegexFix(re *regexp.Regexp, template string, preserveCase bool) detector.FixTemplate {
	return detector.FixFunc(func(matched string) (string, bool) {
		loc := re.FindStringSubmatchIndex(matched)
		if loc == nil {
			return "", false
		}
		out := string(re.ExpandString(nil, template, matched, loc))
		out = matched[:loc[0]] + out + matched[loc[1]:]
		if preserveCase {
			out = matchCase(matched, out)
		}
		return out, true
	})
}

// matchCase copies the case shape of src onto dst: ALL CAPS stays all caps,
// a leading capital stays a leading capital.
func matchCase(src, dst string) string {
	if dst == "" || src == "" {
		return dst
	}
	hasLetter, allUpper := false, true
	for _, r := range src {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				allUpper = false
			}
		}
	}
	if hasLetter && allUpper && utf8.RuneCountInString(src) > 1 {
		return strings.ToUpper(dst)
	}

	first, _ := utf8.DecodeRuneInString(src)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(dst)
		return string(unicode.ToUpper(r)) + dst[size:]
	}
	return dst
}
