// Package fsio is the filesystem seam used by the workspace cache, the
// artifact scanner and the build strategies. Production code runs on the
// OS filesystem; tests swap in an in-memory afero filesystem.
package fsio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrSymlinkUnsupported is returned by Symlink on filesystems without link support.
var ErrSymlinkUnsupported = errors.New("symlinks not supported by filesystem")

// FileAdapter is every filesystem primitive the core relies on.
type FileAdapter interface {
	Exists(path string) bool
	IsDir(path string) bool
	IsFile(path string) bool
	IsSymlink(path string) bool
	Glob(pattern string) ([]string, error)
	ListDir(path string) ([]os.FileInfo, error)
	ReadText(path string) (string, error)
	ReadBinary(path string) ([]byte, error)
	ReadHeader(path string, n int) ([]byte, error)
	WriteText(path, content string) error
	WriteBinary(path string, data []byte) error
	FileSize(path string) (int64, error)
	MkdirAll(path string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Symlink(target, link string) error
	Readlink(path string) (string, error)
	Walk(root string, fn filepath.WalkFunc) error
	CopyFile(src, dst string) (int64, error)
	TempDir(dir, prefix string) (string, error)
}

// Adapter implements FileAdapter on top of an afero.Fs.
type Adapter struct {
	fs afero.Fs
}

// New wraps an arbitrary afero filesystem.
func New(fs afero.Fs) *Adapter {
	return &Adapter{fs: fs}
}

// NewOS returns an adapter backed by the real filesystem.
func NewOS() *Adapter {
	return New(afero.NewOsFs())
}

// NewMemory returns an adapter backed by an in-memory filesystem.
func NewMemory() *Adapter {
	return New(afero.NewMemMapFs())
}

// Fs exposes the underlying afero filesystem.
func (a *Adapter) Fs() afero.Fs {
	return a.fs
}

func (a *Adapter) Exists(path string) bool {
	_, err := a.fs.Stat(path)
	return err == nil
}

func (a *Adapter) IsDir(path string) bool {
	info, err := a.fs.Stat(path)
	return err == nil && info.IsDir()
}

func (a *Adapter) IsFile(path string) bool {
	info, err := a.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (a *Adapter) IsSymlink(path string) bool {
	lstater, ok := a.fs.(afero.Lstater)
	if !ok {
		return false
	}

	info, _, err := lstater.LstatIfPossible(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func (a *Adapter) Glob(pattern string) ([]string, error) {
	return afero.Glob(a.fs, pattern)
}

// ListDir returns directory entries sorted by name. A missing directory is
// reported as an empty listing.
func (a *Adapter) ListDir(path string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	return entries, nil
}

func (a *Adapter) ReadText(path string) (string, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func (a *Adapter) ReadBinary(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

// ReadHeader reads at most n bytes from the start of a file.
func (a *Adapter) ReadHeader(path string, n int) ([]byte, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:read], nil
}

func (a *Adapter) WriteText(path, content string) error {
	return a.WriteBinary(path, []byte(content))
}

// WriteBinary writes data, creating parent directories as needed.
func (a *Adapter) WriteBinary(path string, data []byte) error {
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return afero.WriteFile(a.fs, path, data, 0o644)
}

func (a *Adapter) FileSize(path string) (int64, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (a *Adapter) MkdirAll(path string) error {
	return a.fs.MkdirAll(path, 0o755)
}

// RemoveAll removes path. A symlink is removed without touching its target.
func (a *Adapter) RemoveAll(path string) error {
	if a.IsSymlink(path) {
		return a.fs.Remove(path)
	}

	return a.fs.RemoveAll(path)
}

func (a *Adapter) Rename(oldpath, newpath string) error {
	return a.fs.Rename(oldpath, newpath)
}

func (a *Adapter) Symlink(target, link string) error {
	linker, ok := a.fs.(afero.Linker)
	if !ok {
		return ErrSymlinkUnsupported
	}

	return linker.SymlinkIfPossible(target, link)
}

func (a *Adapter) Readlink(path string) (string, error) {
	reader, ok := a.fs.(afero.LinkReader)
	if !ok {
		return "", ErrSymlinkUnsupported
	}

	return reader.ReadlinkIfPossible(path)
}

func (a *Adapter) Walk(root string, fn filepath.WalkFunc) error {
	return afero.Walk(a.fs, root, fn)
}

// CopyFile copies a file from src to dst, preserving its permissions, and
// returns the number of bytes copied.
func (a *Adapter) CopyFile(src, dst string) (int64, error) {
	srcFile, err := a.fs.Open(src)
	if err != nil {
		return 0, err
	}

	defer srcFile.Close()

	if err := a.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	dstFile, err := a.fs.Create(dst)
	if err != nil {
		return 0, err
	}

	defer dstFile.Close()

	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		return n, err
	}

	srcInfo, err := a.fs.Stat(src)
	if err != nil {
		return n, err
	}

	return n, a.fs.Chmod(dst, srcInfo.Mode())
}

func (a *Adapter) TempDir(dir, prefix string) (string, error) {
	if dir != "" {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}

	return afero.TempDir(a.fs, dir, prefix)
}

// CopyProgressFunc is called after every file copied by CopyDir.
type CopyProgressFunc func(relPath string, size int64)

// CopyDir copies the tree rooted at src into dst. Symlinks inside the tree
// are recreated when the filesystem supports them and skipped otherwise.
func CopyDir(a FileAdapter, src, dst string, progress CopyProgressFunc) (int, int64, error) {
	var files int
	var total int64

	err := a.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return a.MkdirAll(target)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := a.Readlink(path)
			if err != nil {
				return nil
			}

			if err := a.Symlink(link, target); err != nil && !errors.Is(err, ErrSymlinkUnsupported) {
				return fmt.Errorf("failed to link %s: %w", rel, err)
			}

			return nil
		}

		n, err := a.CopyFile(path, target)
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, err)
		}

		files++
		total += n

		if progress != nil {
			progress(rel, n)
		}

		return nil
	})

	return files, total, err
}

// DirStats returns the number of regular files and their total size under root.
func DirStats(a FileAdapter, root string) (int, int64, error) {
	var files int
	var total int64

	err := a.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			files++
			total += info.Size()
		}

		return nil
	})

	return files, total, err
}

// HasPrefixDir reports whether name starts with one of the given prefixes.
func HasPrefixDir(name string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}
