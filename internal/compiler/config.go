package compiler

import (
	"fmt"
	"strings"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/matrix"
)

// Default container images per strategy.
const (
	DefaultZmkImage    = "zmkfirmware/zmk-build-arm:stable"
	DefaultMoergoImage = "glove80-zmk-config-docker:latest"
	DefaultMoergoRepo  = "moergo-sc/zmk"
	DefaultConfigPath  = "config"
	DefaultNixAttr     = "glove80_combined"
	DefaultNixFirmware = "glove80.uf2"
)

// ZmkConfigRepo describes a user config repository in the
// zmk-config layout: a config/ directory with west.yml and a build.yaml.
type ZmkConfigRepo struct {
	Repository      string
	Branch          string
	ConfigPath      string
	BuildMatrixFile string
}

// WestWorkspace describes a workspace generated from a west manifest that
// imports the firmware repository.
type WestWorkspace struct {
	Projects     []matrix.Project
	ExtraModules []string
}

// NixToolchain describes a nix based build inside a toolchain image built
// locally from BuildContext when missing.
type NixToolchain struct {
	BuildContext string
	Attribute    string
	Firmware     string
}

// CompilationConfig selects and parameterizes a strategy. Strategy is the
// tag; an empty tag selects automatically. Exactly one of ZmkConfig, West
// and Toolchain should be set.
type CompilationConfig struct {
	Strategy    string
	Image       string
	Repository  string
	Branch      string
	BuildMatrix *matrix.BuildMatrix
	UseCache    bool

	ZmkConfig *ZmkConfigRepo
	West      *WestWorkspace
	Toolchain *NixToolchain
}

// Profile identifies the keyboard and firmware a compile is for.
type Profile struct {
	Keyboard      string
	Firmware      string
	KeepWorkspace bool
}

// String renders the profile as "keyboard/firmware".
func (p Profile) String() string {
	switch {
	case p.Keyboard == "":
		return ""
	case p.Firmware == "":
		return p.Keyboard
	default:
		return p.Keyboard + "/" + p.Firmware
	}
}

func (c *CompilationConfig) repository(fallback string) string {
	if c.Repository != "" {
		return cache.NormalizeRepository(c.Repository)
	}

	return fallback
}

func (c *CompilationConfig) branch() string {
	if c.Branch != "" {
		return c.Branch
	}

	return cache.DefaultBranch
}

func (c *CompilationConfig) image(fallback string) string {
	if c.Image != "" {
		return c.Image
	}

	return fallback
}

// validateMatrix checks an explicit build matrix when one is given.
func validateMatrix(m *matrix.BuildMatrix) error {
	if m == nil {
		return nil
	}

	if err := m.Validate(); err != nil {
		return errorf(KindConfiguration, "validate build matrix", "%w", err)
	}

	return nil
}

// repositoryURL turns "owner/name" into a GitHub clone URL and leaves
// anything that already looks like a URL alone.
func repositoryURL(repo string) string {
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@") {
		return repo
	}

	return fmt.Sprintf("https://github.com/%s.git", strings.TrimSuffix(repo, ".git"))
}
