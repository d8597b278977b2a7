// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfFile validates a PDF and returns the text of its pages separated by
// blank lines
func pdfFile(path string) (string, error) {
	path = filepath.Clean(path)
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("invalid PDF %s: %w", filepath.Base(path), err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := pageText(p)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// pageText reads a page row by row, falling back to plain extraction
func pageText(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err != nil {
		return p.GetPlainText(nil)
	}

	kept := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			kept = append(kept, row)
		}
	}
	// PDF y grows upwards
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Content[0].Y > kept[j].Content[0].Y
	})

	var b strings.Builder
	for _, row := range kept {
		texts := append([]pdf.Text(nil), row.Content...)
		sort.SliceStable(texts, func(i, j int) bool { return texts[i].X < texts[j].X })

		for i, t := range texts {
			b.WriteString(t.S)
			if i+1 < len(texts) && needsSpace(t, texts[i+1]) {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// needsSpace reports a horizontal gap wider than a fifth of the font size
func needsSpace(cur, next pdf.Text) bool {
	if strings.HasSuffix(cur.S, " ") || strings.HasPrefix(next.S, " ") {
		return false
	}
	size := cur.FontSize
	if size <= 0 {
		size = 12
	}
	return next.X-(cur.X+cur.W) > size*0.2
}
