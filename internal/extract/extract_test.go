// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFile_Text(t *testing.T) {
	dir := t.TempDir()

	text, err := File(write(t, dir, "chapter.md", "# One\n\nHer eyes widened."))
	require.NoError(t, err)
	assert.Equal(t, "# One\n\nHer eyes widened.", text)

	text, err = File(write(t, dir, "bom.txt", "\ufeff東京の町"))
	require.NoError(t, err)
	assert.Equal(t, "東京の町", text)
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := File(write(t, dir, "bad.txt", "ok \xff\xfe"))
	assert.ErrorIs(t, err, ErrNotText)

	_, err = File(write(t, dir, "chapter.docx", "x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = File(write(t, dir, "broken.pdf", "this is not a pdf"))
	assert.Error(t, err)

	_, err = File(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.TXT"))
	assert.True(t, Supported("dir/b.markdown"))
	assert.True(t, Supported("c.pdf"))
	assert.False(t, Supported("d.epub"))
	assert.False(t, Supported("noext"))
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	b := write(t, dir, "b.txt", "b")
	a := write(t, dir, "a.md", "a")
	write(t, dir, "notes.json", "{}")
	nested := write(t, dir, "part2/c.txt", "c")
	write(t, dir, ".hidden/d.txt", "d")

	flat, err := Collect([]string{dir}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, flat)

	all, err := Collect([]string{dir, b}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, nested}, all)

	_, err = Collect([]string{filepath.Join(dir, "notes.json")}, false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Collect([]string{filepath.Join(dir, "missing")}, false)
	assert.Error(t, err)
}
