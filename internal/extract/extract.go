// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package extract loads chapters and source references from disk as text.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrNotText is returned for text files that are not valid UTF-8
var ErrNotText = errors.New("file is not valid UTF-8 text")

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

const utf8BOM = "\ufeff"

// Supported reports whether File can read path
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return textExtensions[ext] || ext == ".pdf"
}

// File returns the text content of a document
func File(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case textExtensions[ext]:
		return textFile(path)
	case ext == ".pdf":
		return pdfFile(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func textFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", path, ErrNotText)
	}
	return strings.TrimPrefix(string(data), utf8BOM), nil
}

// Collect expands files and directories into a sorted list of supported
// documents. Directories are only descended into when recursive is set;
// otherwise their direct children are used.
func Collect(paths []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", root, err)
		}
		if !info.IsDir() {
			if !Supported(root) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, root)
			}
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (!recursive || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if Supported(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", root, err)
		}
	}

	sort.Strings(out)
	return out, nil
}
