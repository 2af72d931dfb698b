package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_ReadWrite(t *testing.T) {
	a := NewMemory()

	require.NoError(t, a.WriteText("/ws/config/corne.keymap", "keymap"))

	assert.True(t, a.Exists("/ws/config"))
	assert.True(t, a.IsDir("/ws/config"))
	assert.True(t, a.IsFile("/ws/config/corne.keymap"))
	assert.False(t, a.IsFile("/ws/config"))
	assert.False(t, a.IsSymlink("/ws/config/corne.keymap"))

	text, err := a.ReadText("/ws/config/corne.keymap")
	require.NoError(t, err)
	assert.Equal(t, "keymap", text)

	size, err := a.FileSize("/ws/config/corne.keymap")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
}

func TestAdapter_ReadHeader(t *testing.T) {
	a := NewMemory()
	require.NoError(t, a.WriteBinary("/f.bin", []byte{1, 2, 3, 4, 5, 6}))

	head, err := a.ReadHeader("/f.bin", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, head)

	short, err := a.ReadHeader("/f.bin", 32)
	require.NoError(t, err)
	assert.Len(t, short, 6)

	_, err = a.ReadHeader("/missing.bin", 4)
	assert.Error(t, err)
}

func TestAdapter_ListDir(t *testing.T) {
	a := NewMemory()
	require.NoError(t, a.WriteText("/d/b.txt", "b"))
	require.NoError(t, a.WriteText("/d/a.txt", "a"))

	entries, err := a.ListDir("/d")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name())
	assert.Equal(t, "b.txt", entries[1].Name())

	missing, err := a.ListDir("/nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestAdapter_SymlinkUnsupportedInMemory(t *testing.T) {
	a := NewMemory()

	err := a.Symlink("/target", "/link")
	assert.ErrorIs(t, err, ErrSymlinkUnsupported)
}

func TestAdapter_SymlinkOnDisk(t *testing.T) {
	dir := t.TempDir()
	a := NewOS()

	target := filepath.Join(dir, "real")
	link := filepath.Join(dir, "alias")

	require.NoError(t, a.WriteText(filepath.Join(target, "zmk", "README"), "zmk"))

	if err := a.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	assert.True(t, a.IsSymlink(link))
	assert.True(t, a.IsDir(link))

	dest, err := a.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, dest)

	require.NoError(t, a.RemoveAll(link))
	assert.False(t, a.Exists(link))
	assert.True(t, a.IsFile(filepath.Join(target, "zmk", "README")), "removing a link keeps its target")
}

func TestCopyDir(t *testing.T) {
	a := NewMemory()
	require.NoError(t, a.WriteText("/src/zmk/app/CMakeLists.txt", "cmake"))
	require.NoError(t, a.WriteText("/src/zephyr/VERSION", "3.5"))
	require.NoError(t, a.MkdirAll("/src/modules/empty"))

	var seen []string
	files, size, err := CopyDir(a, "/src", "/dst", func(rel string, _ int64) {
		seen = append(seen, rel)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, files)
	assert.Equal(t, int64(8), size)
	assert.ElementsMatch(t, []string{
		filepath.Join("zephyr", "VERSION"),
		filepath.Join("zmk", "app", "CMakeLists.txt"),
	}, seen)
	assert.True(t, a.IsDir("/dst/modules/empty"))

	text, err := a.ReadText("/dst/zmk/app/CMakeLists.txt")
	require.NoError(t, err)
	assert.Equal(t, "cmake", text)
}

func TestDirStats(t *testing.T) {
	a := NewMemory()
	require.NoError(t, a.WriteBinary("/w/a", make([]byte, 10)))
	require.NoError(t, a.WriteBinary("/w/sub/b", make([]byte, 5)))

	files, size, err := DirStats(a, "/w")
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(15), size)

	_, _, err = DirStats(a, "/missing")
	assert.Error(t, err)
}

func TestAdapter_CopyFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	a := NewOS()

	src := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0o755))

	n, err := a.CopyFile(src, filepath.Join(dir, "out", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	info, err := os.Stat(filepath.Join(dir, "out", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestAdapter_TempDirAndRename(t *testing.T) {
	a := NewMemory()

	tmp, err := a.TempDir("/cache", ".tmp-")
	require.NoError(t, err)
	assert.True(t, HasPrefixDir(filepath.Base(tmp), ".tmp-"))

	require.NoError(t, a.WriteText(filepath.Join(tmp, "f"), "x"))
	require.NoError(t, a.Rename(tmp, "/cache/final"))
	assert.True(t, a.IsFile("/cache/final/f"))
}
