package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/gitlib"
	"github.com/repolens/repolens/pkg/event"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func TestSniffContentText(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "text.go", []byte("package main\n\nfunc main() {}\n"))

	binary, lines, err := sniffContent(path)
	require.NoError(t, err)
	assert.False(t, binary)
	assert.Equal(t, 3, lines)
}

func TestSniffContentNoTrailingNewline(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "f.txt", []byte("one\ntwo"))

	_, lines, err := sniffContent(path)
	require.NoError(t, err)
	assert.Equal(t, 2, lines)
}

func TestSniffContentBinary(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "blob.bin", []byte{0x7f, 'E', 'L', 'F', 0x00, 0x01})

	binary, lines, err := sniffContent(path)
	require.NoError(t, err)
	assert.True(t, binary)
	assert.Zero(t, lines)
}

func TestSniffContentEmpty(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "empty", nil)

	binary, lines, err := sniffContent(path)
	require.NoError(t, err)
	assert.False(t, binary)
	assert.Zero(t, lines)
}

func TestChangeTypeMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, event.ChangeAdded, changeType(gitlib.KindAdded))
	assert.Equal(t, event.ChangeModified, changeType(gitlib.KindModified))
	assert.Equal(t, event.ChangeDeleted, changeType(gitlib.KindDeleted))
	assert.Equal(t, event.ChangeRenamed, changeType(gitlib.KindRenamed))
	assert.Equal(t, event.ChangeCopied, changeType(gitlib.KindCopied))
}
