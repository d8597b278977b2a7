// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package remediation

import (
	"fmt"
	"sort"
	"strings"

	"prose-scan/internal/detector"
)

// Rollback reconstructs the original document from a fixed document and the
// fix records of the run that produced it. Records with Applied=false are
// ignored.
func Rollback(fixed string, fixes []detector.Fix) (string, error) {
	applied := make([]detector.Fix, 0, len(fixes))
	for _, f := range fixes {
		if f.Applied {
			applied = append(applied, f)
		}
	}
	sort.SliceStable(applied, func(i, j int) bool {
		return applied[i].SpanBefore.Start < applied[j].SpanBefore.Start
	})

	var b strings.Builder
	b.Grow(len(fixed))
	last, delta, prevEnd := 0, 0, 0
	for _, f := range applied {
		if f.SpanBefore.Start < prevEnd {
			return "", fmt.Errorf("fix %s overlaps an earlier fix", f.FindingID)
		}
		if f.SpanBefore.Len() != len(f.OriginalText) {
			return "", fmt.Errorf("fix %s: span %s does not match original text length %d", f.FindingID, f.SpanBefore, len(f.OriginalText))
		}

		pos := f.SpanBefore.Start + delta
		end := pos + len(f.ReplacementText)
		if pos < last || end > len(fixed) || fixed[pos:end] != f.ReplacementText {
			return "", fmt.Errorf("fix %s: replacement text not found at offset %d", f.FindingID, pos)
		}

		b.WriteString(fixed[last:pos])
		b.WriteString(f.OriginalText)
		last = end
		prevEnd = f.SpanBefore.End
		delta += len(f.ReplacementText) - len(f.OriginalText)
	}
	b.WriteString(fixed[last:])
	return b.String(), nil
}
