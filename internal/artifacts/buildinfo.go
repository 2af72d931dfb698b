package artifacts

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// BuildInfoFile is written into every output directory.
const BuildInfoFile = "build-info.json"

// BuildInfo records what went into a build and what came out.
type BuildInfo struct {
	BuildID      string    `json:"build_id"`
	Timestamp    time.Time `json:"timestamp"`
	BuildMode    string    `json:"build_mode"`
	Profile      string    `json:"profile,omitempty"`
	Success      bool      `json:"success"`
	FromCache    bool      `json:"from_cache"`
	KeymapFile   string    `json:"keymap_file,omitempty"`
	KeymapSHA256 string    `json:"keymap_sha256,omitempty"`
	ConfigFile   string    `json:"config_file,omitempty"`
	ConfigSHA256 string    `json:"config_sha256,omitempty"`
	Binaries     []string  `json:"binaries"`
}

// WriteBuildInfo writes the manifest into outputDir and returns its path.
func WriteBuildInfo(fs fsio.FileAdapter, outputDir string, info BuildInfo) (string, error) {
	if info.Binaries == nil {
		info.Binaries = []string{}
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode build info: %w", err)
	}

	path := filepath.Join(outputDir, BuildInfoFile)
	if err := fs.WriteBinary(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("failed to write build info: %w", err)
	}

	return path, nil
}

// ReadBuildInfo loads a previously written manifest.
func ReadBuildInfo(fs fsio.FileAdapter, outputDir string) (*BuildInfo, error) {
	data, err := fs.ReadBinary(filepath.Join(outputDir, BuildInfoFile))
	if err != nil {
		return nil, err
	}

	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode build info: %w", err)
	}

	return &info, nil
}
