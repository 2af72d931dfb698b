package artifacts

import (
	"path/filepath"
	"sort"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// DefaultPattern matches firmware binaries.
const DefaultPattern = "*" + FirmwareExt

// Legacy split keyboard output directories (left/right halves).
const (
	LeftDir  = "lf"
	RightDir = "rh"
)

// Scanner locates firmware files produced by a build.
type Scanner struct {
	fs fsio.FileAdapter
}

// NewScanner creates a scanner over the given filesystem.
func NewScanner(fs fsio.FileAdapter) *Scanner {
	return &Scanner{fs: fs}
}

// ScanFirmwareFiles searches dir in order: a direct match, the west
// convention build/<target>/zephyr/<binary>, the config repository
// convention artifacts/<binary>, then the legacy lf/ and rh/ directories.
// Results keep first-seen order with duplicates removed.
func (s *Scanner) ScanFirmwareFiles(dir, pattern string) []string {
	if pattern == "" {
		pattern = DefaultPattern
	}

	locations := []string{
		filepath.Join(dir, pattern),
		filepath.Join(dir, "build", "*", "zephyr", pattern),
		filepath.Join(dir, "artifacts", pattern),
		filepath.Join(dir, LeftDir, pattern),
		filepath.Join(dir, RightDir, pattern),
	}

	seen := make(map[string]bool)
	var files []string

	for _, loc := range locations {
		matches, err := s.fs.Glob(loc)
		if err != nil {
			continue
		}

		sort.Strings(matches)

		for _, m := range matches {
			clean := filepath.Clean(m)
			if seen[clean] {
				continue
			}

			seen[clean] = true
			files = append(files, clean)
		}
	}

	return files
}

// ScanWorkspaceAndOutput scans both directories. When the same file name is
// found in both, the workspace copy wins.
func (s *Scanner) ScanWorkspaceAndOutput(workspace, output, pattern string) []string {
	var files []string
	names := make(map[string]bool)

	if workspace != "" {
		for _, f := range s.ScanFirmwareFiles(workspace, pattern) {
			files = append(files, f)
			names[filepath.Base(f)] = true
		}
	}

	if output != "" && filepath.Clean(output) != filepath.Clean(workspace) {
		for _, f := range s.ScanFirmwareFiles(output, pattern) {
			if names[filepath.Base(f)] {
				continue
			}

			names[filepath.Base(f)] = true
			files = append(files, f)
		}
	}

	return files
}
