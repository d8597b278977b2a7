// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package junit

import (
	"encoding/xml"
	"fmt"
	"strings"

	"prose-scan/internal/core"
	"prose-scan/internal/detector"
	"prose-scan/internal/formatters"
	"prose-scan/internal/formatters/shared"
	"prose-scan/internal/review"
)

// JUnit XML structures based on the standard JUnit XML schema
type TestSuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Name       string      `xml:"name,attr"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Errors     int         `xml:"errors,attr"`
	Time       string      `xml:"time,attr"`
	TestSuites []TestSuite `xml:"testsuite"`
}

type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Time      string     `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

type TestCase struct {
	XMLName   xml.Name `xml:"testcase"`
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      string   `xml:"time,attr"`
	Failure   *Failure `xml:"failure,omitempty"`
}

type Failure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Formatter implements JUnit XML output. Every document is a test suite and
// every detector kind a test case that fails while review items of that
// kind remain.
type Formatter struct{}

// NewFormatter creates a new JUnit XML formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "junit"
}

func (f *Formatter) Description() string {
	return "JUnit XML format for CI/CD integration and test reporting"
}

func (f *Formatter) FileExtension() string {
	return ".xml"
}

func (f *Formatter) Format(results []*core.Result, options formatters.FormatterOptions) (string, error) {
	suites := TestSuites{Name: "prose-scan"}

	var total float64
	for _, r := range results {
		if r == nil {
			continue
		}
		suite := f.suiteFor(r, options)
		suites.TestSuites = append(suites.TestSuites, suite)
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		total += float64(r.Summary.DurationMs) / 1000
	}
	suites.Time = fmt.Sprintf("%.3f", total)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error formatting JUnit XML: %w", err)
	}
	return xml.Header + string(data), nil
}

func (f *Formatter) suiteFor(r *core.Result, options formatters.FormatterOptions) TestSuite {
	name := r.Name
	if name == "" {
		name = "document"
	}
	suite := TestSuite{
		Name: name,
		Time: fmt.Sprintf("%.3f", float64(r.Summary.DurationMs)/1000),
	}

	byKind := make(map[detector.Kind][]detector.ReviewItem)
	for _, group := range review.Groups(shared.FilterReviewQueue(r.ReviewQueue, options)) {
		byKind[group.Kind] = group.Items
	}

	for _, kind := range detector.Kinds {
		tc := TestCase{
			Name:      string(kind),
			ClassName: name,
			Time:      "0.000",
		}
		if items := byKind[kind]; len(items) > 0 {
			tc.Failure = &Failure{
				Message: fmt.Sprintf("%d %s findings need review", len(items), kind),
				Type:    items[0].Priority.String(),
				Content: describe(items),
			}
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
		suite.Tests++
	}
	return suite
}

func describe(items []detector.ReviewItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "[%s] %s %s %q (%s, %.2f)\n",
			strings.ToUpper(item.Priority.String()), item.DetectorID, item.Span, item.MatchedText, item.Reason, item.Confidence)
	}
	return b.String()
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
