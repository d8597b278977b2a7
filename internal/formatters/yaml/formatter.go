// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package yaml

import (
	"fmt"

	"prose-scan/internal/core"
	"prose-scan/internal/formatters"
	"prose-scan/internal/formatters/shared"

	"gopkg.in/yaml.v3"
)

// Formatter implements YAML output formatting
type Formatter struct{}

// NewFormatter creates a new YAML formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "yaml"
}

func (f *Formatter) Description() string {
	return "YAML output, one document per validated file"
}

func (f *Formatter) FileExtension() string {
	return ".yaml"
}

// Format writes each result as its own YAML document
func (f *Formatter) Format(results []*core.Result, options formatters.FormatterOptions) (string, error) {
	filtered := shared.FilterResults(results, options)
	if len(filtered) == 0 {
		return "", nil
	}

	var out []byte
	for i, r := range filtered {
		data, err := yaml.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("error formatting YAML: %w", err)
		}
		if i > 0 {
			out = append(out, "---\n"...)
		}
		out = append(out, data...)
	}
	return string(out), nil
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
