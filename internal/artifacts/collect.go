package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// DebugExts are the auxiliary outputs copied alongside firmware from a
// workspace artifacts directory.
var DebugExts = []string{".kconfig", ".dts", ".elf", ".hex", ".bin"}

// OutputFiles is the bundle of firmware delivered to the caller. Main, Left
// and Right are filled for split keyboards; Files lists every binary.
type OutputFiles struct {
	OutputDir    string   `json:"output_dir"`
	Main         string   `json:"main,omitempty"`
	Left         string   `json:"left,omitempty"`
	Right        string   `json:"right,omitempty"`
	Files        []string `json:"files"`
	ArtifactsDir string   `json:"artifacts_dir,omitempty"`
}

// Empty reports whether no firmware was collected.
func (o *OutputFiles) Empty() bool {
	return o == nil || len(o.Files) == 0
}

// Collector copies discovered firmware into an output directory.
type Collector struct {
	fs fsio.FileAdapter
}

// NewCollector creates a collector.
func NewCollector(fs fsio.FileAdapter) *Collector {
	return &Collector{fs: fs}
}

// Collect copies files into outputDir and classifies them. Files already
// inside outputDir are recorded without copying.
func (c *Collector) Collect(files []string, outputDir string) (*OutputFiles, error) {
	out := &OutputFiles{OutputDir: outputDir}

	if err := c.fs.MkdirAll(outputDir); err != nil {
		return out, fmt.Errorf("failed to create output directory: %w", err)
	}

	used := make(map[string]bool)

	for _, src := range files {
		name := destName(src)
		for i := 2; used[name]; i++ {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(destName(src), ext), i, ext)
		}

		used[name] = true
		dst := filepath.Join(outputDir, name)

		if filepath.Clean(src) != filepath.Clean(dst) {
			if _, err := c.fs.CopyFile(src, dst); err != nil {
				return out, fmt.Errorf("failed to copy %s: %w", src, err)
			}
		}

		out.Files = append(out.Files, dst)

		if dir, ok := c.copyDebugFiles(src, outputDir); ok {
			out.ArtifactsDir = dir
		}
	}

	classify(out)

	return out, nil
}

// copyDebugFiles copies debug outputs sharing the firmware's stem from a
// workspace artifacts directory into <outputDir>/artifacts.
func (c *Collector) copyDebugFiles(firmware, outputDir string) (string, bool) {
	if filepath.Base(filepath.Dir(firmware)) != "artifacts" {
		return "", false
	}

	stem := strings.TrimSuffix(filepath.Base(firmware), filepath.Ext(firmware))
	srcDir := filepath.Dir(firmware)
	dstDir := filepath.Join(outputDir, "artifacts")

	if filepath.Clean(srcDir) == filepath.Clean(dstDir) {
		return dstDir, true
	}

	copied := false

	for _, ext := range DebugExts {
		src := filepath.Join(srcDir, stem+ext)
		if !c.fs.IsFile(src) {
			continue
		}

		if _, err := c.fs.CopyFile(src, filepath.Join(dstDir, stem+ext)); err == nil {
			copied = true
		}
	}

	return dstDir, copied
}

// destName derives the output file name. West builds all emit zmk.uf2, so
// files under build/<target>/zephyr are renamed after their target; legacy
// lf/rh outputs get a half suffix.
func destName(src string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	parent := filepath.Base(filepath.Dir(src))

	switch parent {
	case "zephyr":
		target := filepath.Dir(filepath.Dir(src))
		if filepath.Base(filepath.Dir(target)) == "build" {
			return filepath.Base(target) + ext
		}
	case LeftDir:
		return strings.TrimSuffix(base, ext) + "_lh" + ext
	case RightDir:
		return strings.TrimSuffix(base, ext) + "_rh" + ext
	}

	return base
}

func classify(out *OutputFiles) {
	for _, f := range out.Files {
		switch side(filepath.Base(f)) {
		case "left":
			if out.Left == "" {
				out.Left = f
			}
		case "right":
			if out.Right == "" {
				out.Right = f
			}
		default:
			if out.Main == "" {
				out.Main = f
			}
		}
	}
}

func side(name string) string {
	lower := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	tokens := strings.FieldsFunc(lower, func(r rune) bool { return r == '_' || r == '-' || r == '.' })

	for _, tok := range tokens {
		switch tok {
		case "left", "lh", "lf":
			return "left"
		case "right", "rh":
			return "right"
		}
	}

	return ""
}
