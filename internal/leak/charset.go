// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package leak

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// class is the role a rune plays relative to a charset
type class int

const (
	classNeutral class = iota // spaces, digits, punctuation shared by all scripts
	classTarget
	classForeign
	classThird // anything from an unrelated script, including U+FFFD
)

// Charset is the set of reference character classes for one language pair
type Charset struct {
	Name string

	// Target lists the scripts the translated text is written in
	Target []*unicode.RangeTable

	// Foreign lists scripts that only the source language uses
	Foreign []*unicode.RangeTable

	// ForeignOnly lists runes that exist in a target script but are only
	// used by the source language, such as simplified-only Han for Japanese
	ForeignOnly map[rune]bool

	// Connectors carry the target language's function words
	Connectors []*unicode.RangeTable

	// Frequency is the relative frequency in [0,1] of foreign runes in
	// ordinary text. Frequent runes are less suspicious.
	Frequency map[rune]float64

	// BadSequences are multi-rune strings that never belong in the target text
	BadSequences []string

	// Replacements maps a foreign rune or sequence to its target form
	Replacements map[string]string

	// FullWidthForeign treats full-width forms as foreign and fixes them to
	// their narrow equivalents
	FullWidthForeign bool
}

// IsForeign reports whether r is a leak candidate on its own
func (c *Charset) IsForeign(r rune) bool {
	if c.ForeignOnly[r] {
		return true
	}
	if c.FullWidthForeign && isFullWidth(r) {
		return true
	}
	return unicode.In(r, c.Foreign...) && !unicode.In(r, c.Target...)
}

func (c *Charset) classify(r rune) class {
	switch {
	case c.IsForeign(r):
		return classForeign
	case unicode.In(r, c.Target...):
		return classTarget
	case r == utf8.RuneError || unicode.Is(unicode.Co, r):
		return classThird
	case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) || unicode.IsSymbol(r):
		return classNeutral
	case unicode.In(r, unicode.Common, unicode.Inherited):
		return classNeutral
	default:
		return classThird
	}
}

func (c *Charset) isConnector(r rune) bool {
	return len(c.Connectors) > 0 && unicode.In(r, c.Connectors...)
}

// rarity is 1 for runes on the foreign-only list and 1-frequency otherwise
func (c *Charset) rarity(r rune) float64 {
	if c.ForeignOnly[r] {
		return 1
	}
	f := c.Frequency[r]
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return 1 - f
}

// sequenceAt returns the longest bad sequence starting at text[offset:]
func (c *Charset) sequenceAt(text string, offset int) string {
	for _, seq := range c.BadSequences {
		if strings.HasPrefix(text[offset:], seq) {
			return seq
		}
	}
	return ""
}

// Replacement returns the target form of a foreign rune or sequence
func (c *Charset) Replacement(s string) (string, bool) {
	if repl, ok := c.Replacements[s]; ok {
		return repl, repl != s
	}
	if c.FullWidthForeign && utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		if isFullWidth(r) {
			if narrow := width.Narrow.String(s); narrow != s {
				return narrow, true
			}
		}
	}
	return "", false
}

// Contains reports whether text holds any foreign rune or bad sequence
func (c *Charset) Contains(text string) bool {
	for _, seq := range c.BadSequences {
		if strings.Contains(text, seq) {
			return true
		}
	}
	for _, r := range text {
		if c.IsForeign(r) {
			return true
		}
	}
	return false
}

func isFullWidth(r rune) bool {
	return width.LookupRune(r).Kind() == width.EastAsianFullwidth
}

// normalize orders bad sequences longest first so matching is greedy
func (c *Charset) normalize() *Charset {
	seqs := make([]string, 0, len(c.BadSequences))
	for _, s := range c.BadSequences {
		if utf8.RuneCountInString(s) >= 2 {
			seqs = append(seqs, s)
		}
	}
	sort.SliceStable(seqs, func(i, j int) bool {
		return len(seqs[i]) > len(seqs[j])
	})
	c.BadSequences = seqs
	return c
}

var profiles = map[string]func() *Charset{
	"zh-ja": zhJa,
	"zh-en": zhEn,
}

// Profile returns a fresh copy of a built-in charset
func Profile(name string) (*Charset, error) {
	build, ok := profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown script profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return build().normalize(), nil
}

// ProfileNames lists the built-in charsets
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mojibake produced when GBK/UTF-8 bytes are decoded with the wrong codec
var mojibake = []string{"锟斤拷", "烫烫烫", "屯屯屯"}

// zhJa is Chinese source text translated into Japanese. Han is shared, so the
// foreign set is the simplified forms Japanese never uses.
func zhJa() *Charset {
	simplified := map[string]string{
		"说": "説", "时": "時", "对": "対", "还": "還", "让": "譲",
		"给": "給", "问": "問", "门": "門", "见": "見", "书": "書",
		"车": "車", "长": "長", "开": "開", "关": "関", "东": "東",
		"头": "頭", "过": "過", "从": "従", "为": "為", "个": "個",
		"这": "", "们": "", "吗": "", "么": "",
	}

	cs := &Charset{
		Name:        "zh-ja",
		Target:      []*unicode.RangeTable{unicode.Hiragana, unicode.Katakana, unicode.Han, unicode.Latin},
		Foreign:     []*unicode.RangeTable{unicode.Bopomofo},
		ForeignOnly: make(map[rune]bool, len(simplified)),
		Connectors:  []*unicode.RangeTable{unicode.Hiragana},
		Frequency:   map[rune]float64{},
		BadSequences: append([]string{
			"这个", "这些", "我们", "他们", "你们", "什么", "没有", "为什么",
		}, mojibake...),
		Replacements: map[string]string{
			"这个": "この", "这些": "これら", "我们": "私たち", "他们": "彼ら",
			"你们": "あなたたち", "什么": "何", "为什么": "なぜ",
		},
	}
	for s, repl := range simplified {
		r, _ := utf8.DecodeRuneInString(s)
		cs.ForeignOnly[r] = true
		if repl != "" {
			cs.Replacements[s] = repl
		}
	}
	return cs
}

// zhEn is Chinese source text translated into English. Every Han rune is
// foreign and there are no single-rune connectors, so the context factor is
// always 1.
func zhEn() *Charset {
	return &Charset{
		Name:    "zh-en",
		Target:  []*unicode.RangeTable{unicode.Latin},
		Foreign: []*unicode.RangeTable{unicode.Han, unicode.Bopomofo},
		ForeignOnly: map[rune]bool{
			'。': true, '、': true, '「': true, '」': true, '『': true, '』': true, '《': true, '》': true,
		},
		Frequency: map[rune]float64{
			'的': 0.9, '一': 0.6, '是': 0.6, '不': 0.5, '了': 0.5,
			'人': 0.45, '我': 0.45, '在': 0.45, '有': 0.4, '他': 0.4,
			'这': 0.4, '中': 0.35, '大': 0.35, '来': 0.3, '上': 0.3,
			'个': 0.3, '国': 0.3, '到': 0.25, '说': 0.25, '们': 0.25,
		},
		BadSequences: append([]string{"的话", "然后", "但是", "因为", "所以"}, mojibake...),
		Replacements: map[string]string{
			"。": ".", "、": ",", "「": "\"", "」": "\"", "『": "\"", "』": "\"",
		},
		FullWidthForeign: true,
	}
}
