// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package csv

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"prose-scan/internal/core"
	"prose-scan/internal/formatters"
	"prose-scan/internal/formatters/shared"
)

// Formatter implements CSV output formatting, one row per review item
type Formatter struct{}

// NewFormatter creates a new CSV formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "csv"
}

func (f *Formatter) Description() string {
	return "Review queue as comma-separated values for spreadsheet import"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

func (f *Formatter) Format(results []*core.Result, options formatters.FormatterOptions) (string, error) {
	var builder strings.Builder
	w := csv.NewWriter(&builder)

	headers := []string{"Document", "Priority", "Kind", "Rule", "Severity", "Confidence", "Start", "End", "Reason", "Text"}
	if options.Verbose {
		headers = append(headers, "Finding ID", "Sort Key")
	}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		for _, item := range shared.FilterReviewQueue(r.ReviewQueue, options) {
			row := []string{
				r.Name,
				item.Priority.String(),
				string(item.Kind),
				item.DetectorID,
				item.Severity.String(),
				strconv.FormatFloat(item.Confidence, 'f', 2, 64),
				strconv.Itoa(item.Span.Start),
				strconv.Itoa(item.Span.End),
				item.Reason,
				item.MatchedText,
			}
			if options.Verbose {
				row = append(row, item.FindingID, item.SortKey)
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("error writing CSV row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
