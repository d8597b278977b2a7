// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"

	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/formatters"
	"prose-scan/internal/formatters/shared"
	"prose-scan/internal/review"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

const (
	ruleWidth  = 22
	matchWidth = 30
)

// Formatter implements text-based output formatting
type Formatter struct {
	colors map[string]*color.Color
}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"critical": color.New(color.FgRed, color.Bold),
			"high":     color.New(color.FgRed),
			"medium":   color.New(color.FgYellow),
			"low":      color.New(color.FgGreen),
			"cyan":     color.New(color.FgCyan),
			"magenta":  color.New(color.FgMagenta),
			"blue":     color.New(color.FgBlue),
			"white":    color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable review queue with colors"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(results []*core.Result, options formatters.FormatterOptions) (string, error) {
	var builder strings.Builder

	for i, r := range results {
		if r == nil {
			continue
		}
		if i > 0 {
			builder.WriteString("\n")
		}
		f.appendDocument(&builder, r, options)
	}

	if len(results) > 1 {
		t := shared.Sum(results)
		builder.WriteString("\n")
		f.paint(&builder, options, "white", "%d documents: %d findings, %d auto-fixed, %d for review, %d suppressed\n",
			t.Documents, t.TotalFindings, t.TotalAutoFixed, t.ReviewItems, t.Suppressed)
	}

	return builder.String(), nil
}

// paint writes formatted text in the named color unless colors are disabled
func (f *Formatter) paint(builder *strings.Builder, options formatters.FormatterOptions, name, format string, args ...interface{}) {
	c, ok := f.colors[name]
	if options.NoColor || !ok {
		fmt.Fprintf(builder, format, args...)
		return
	}
	c.Fprintf(builder, format, args...)
}

func (f *Formatter) appendDocument(builder *strings.Builder, r *core.Result, options formatters.FormatterOptions) {
	name := r.Name
	if name == "" {
		name = "<document>"
	}
	f.paint(builder, options, "white", "=== %s ===\n", name)

	items := shared.FilterReviewQueue(r.ReviewQueue, options)
	applied := r.AppliedFixes()

	if r.Summary.TotalFindings == 0 {
		builder.WriteString("No issues found.\n")
	} else {
		f.appendSummary(builder, r, len(items))
	}

	if len(applied) > 0 && options.Verbose {
		builder.WriteString("\nApplied fixes:\n")
		for _, fix := range applied {
			builder.WriteString("  ")
			f.paint(builder, options, "magenta", "%-12s", fix.SpanBefore.String())
			fmt.Fprintf(builder, " %q -> %q  (%.2f)\n", fix.OriginalText, fix.ReplacementText, fix.Confidence)
		}
	}

	if len(items) > 0 {
		builder.WriteString("\n")
		f.appendHeaders(builder, options)
		for _, group := range review.Groups(items) {
			f.paint(builder, options, "white", "%s (%d)\n", strings.ToUpper(string(group.Kind)), len(group.Items))
			for _, item := range group.Items {
				f.appendItem(builder, item, options)
			}
		}
	}

	if options.Verbose {
		for _, s := range r.Suppressed {
			fmt.Fprintf(builder, "  suppressed %s (%s) by %s\n", s.Finding.ID, s.Finding.MatchedText, s.SuppressedBy)
		}
		for _, skipped := range r.Summary.RulesSkipped {
			fmt.Fprintf(builder, "  rule %s skipped: %s\n", skipped.RuleID, skipped.Reason)
		}
	}
}

func (f *Formatter) appendSummary(builder *strings.Builder, r *core.Result, shown int) {
	s := r.Summary
	fmt.Fprintf(builder, "%d findings (critical %d, major %d, minor %d), %d auto-fixed, %d for review",
		s.TotalFindings,
		s.CountsBySeverity[detector.SeverityCritical.String()],
		s.CountsBySeverity[detector.SeverityMajor.String()],
		s.CountsBySeverity[detector.SeverityMinor.String()],
		s.TotalAutoFixed,
		len(r.ReviewQueue))
	if shown != len(r.ReviewQueue) {
		fmt.Fprintf(builder, " (%d shown)", shown)
	}
	if s.Suppressed > 0 {
		fmt.Fprintf(builder, ", %d suppressed", s.Suppressed)
	}
	if len(s.RulesSkipped) > 0 {
		fmt.Fprintf(builder, ", %d rules skipped", len(s.RulesSkipped))
	}
	builder.WriteString("\n")
}

// appendHeaders adds column headers to the string builder
func (f *Formatter) appendHeaders(builder *strings.Builder, options formatters.FormatterOptions) {
	header := fmt.Sprintf("%-10s %-8s %-*s %-6s %-12s %-15s %s\n",
		"PRIORITY", "KIND", ruleWidth, "RULE", "CONF", "SPAN", "REASON", "MATCH")
	f.paint(builder, options, "white", "%s", header)
	f.paint(builder, options, "white", "%s\n", strings.Repeat("-", 10+8+ruleWidth+6+12+15+matchWidth+6))
}

// appendItem adds a single review item as one line
func (f *Formatter) appendItem(builder *strings.Builder, item detector.ReviewItem, options formatters.FormatterOptions) {
	priority := item.Priority.String()
	f.paint(builder, options, priority, "%-10s", "["+strings.ToUpper(priority)+"]")
	builder.WriteString(" ")
	fmt.Fprintf(builder, "%-8s ", item.Kind)
	f.paint(builder, options, "cyan", "%s", fit(item.DetectorID, ruleWidth))
	builder.WriteString(" ")
	f.paint(builder, options, "blue", "%-6.2f", item.Confidence)
	builder.WriteString(" ")
	f.paint(builder, options, "magenta", "%-12s", item.Span.String())
	fmt.Fprintf(builder, " %-15s %s\n", item.Reason, fit(oneLine(item.MatchedText), matchWidth))
}

// fit truncates or pads s to exactly width display columns, counting
// wide CJK runes as two
func fit(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
