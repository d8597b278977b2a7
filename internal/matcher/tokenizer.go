// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package matcher

import (
	"sort"
	"unicode"
	"unicode/utf8"
)

// Token is the byte range of one word-like token
type Token struct {
	Start int
	End   int
}

// TokenIndex maps byte offsets of a document to token ordinals. It is built
// once per document and shared by every rule.
type TokenIndex struct {
	tokens []Token
}

// Tokenize splits text into tokens. A token is a maximal run of letters,
// digits and combining marks; an apostrophe or hyphen between two such runes
// stays inside the token. Han, Hiragana and Katakana runes are written
// without spaces, so each of them is a token of its own.
func Tokenize(text string) *TokenIndex {
	idx := &TokenIndex{tokens: make([]Token, 0, len(text)/5+1)}

	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case isSolo(r):
			if start >= 0 {
				idx.tokens = append(idx.tokens, Token{Start: start, End: i})
				start = -1
			}
			idx.tokens = append(idx.tokens, Token{Start: i, End: i + size})
		case isWord(r):
			if start < 0 {
				start = i
			}
		case start >= 0 && isJoiner(r) && wordFollows(text, i+size):
			// stays inside the current token
		default:
			if start >= 0 {
				idx.tokens = append(idx.tokens, Token{Start: start, End: i})
				start = -1
			}
		}
		i += size
	}
	if start >= 0 {
		idx.tokens = append(idx.tokens, Token{Start: start, End: len(text)})
	}

	return idx
}

// Len returns the number of tokens
func (t *TokenIndex) Len() int {
	return len(t.tokens)
}

// Tokens returns a copy of the token ranges
func (t *TokenIndex) Tokens() []Token {
	return append([]Token(nil), t.tokens...)
}

// PositionAt returns the ordinal of the first token ending after offset.
// An offset past the last token maps to Len().
func (t *TokenIndex) PositionAt(offset int) int {
	return sort.Search(len(t.tokens), func(i int) bool {
		return t.tokens[i].End > offset
	})
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isSolo(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
}

func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '-', '‐':
		return true
	}
	return false
}

func wordFollows(text string, at int) bool {
	if at >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[at:])
	return isWord(r) && !isSolo(r)
}
