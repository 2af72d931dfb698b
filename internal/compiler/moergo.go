package compiler

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/matrix"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

// nixSourceDir is where the firmware repository is cloned in the workspace.
const nixSourceDir = "src"

// MoergoStrategy builds with nix inside a toolchain image. It is the
// fallback when no west based strategy applies.
type MoergoStrategy struct {
	base
}

// NewMoergoStrategy creates the nix toolchain strategy.
func NewMoergoStrategy() *MoergoStrategy {
	return &MoergoStrategy{}
}

func (s *MoergoStrategy) Name() string { return progress.StrategyMoergo }

func (s *MoergoStrategy) Matches(cfg *CompilationConfig) bool {
	return cfg.Toolchain != nil
}

func (s *MoergoStrategy) ValidateConfig(cfg *CompilationConfig) error {
	if cfg.Toolchain == nil {
		return errorf(KindConfiguration, "validate config", "toolchain is required")
	}

	if f := cfg.Toolchain.Firmware; f != "" && filepath.Base(f) != f {
		return errorf(KindConfiguration, "validate config", "firmware %q must be a file name", f)
	}

	return nil
}

func (s *MoergoStrategy) Compile(ctx context.Context, job *Job) *BuildResult {
	return execute(ctx, moergoSteps{s}, s.runtime, job)
}

type moergoSteps struct {
	*MoergoStrategy
}

func (moergoSteps) name() string { return progress.StrategyMoergo }
func (moergoSteps) defaultImage() string { return DefaultMoergoImage }
func (moergoSteps) cachesWorkspace() bool { return false }
func (moergoSteps) repositoryLine() *regexp.Regexp { return CloneRepositoryLine }

func (moergoSteps) identity(cfg *CompilationConfig) (string, string) {
	return cfg.repository(DefaultMoergoRepo), cfg.branch()
}

// ensureImage defers to fetch, which verifies the image in its own phase.
func (moergoSteps) ensureImage(context.Context, *run) error {
	return nil
}

// prepare builds a single target matrix named after the firmware file.
func (moergoSteps) prepare(_ context.Context, r *run) error {
	board := strings.TrimSuffix(firmwareName(r.cfg), filepath.Ext(firmwareName(r.cfg)))
	r.matrix = matrix.Single(board, "")
	r.repositories = 1

	return nil
}

// fetch verifies the toolchain image and clones the firmware repository.
func (s moergoSteps) fetch(ctx context.Context, r *run) error {
	r.tracker.TransitionToPhase(progress.PhaseDockerVerification, "Verifying toolchain image")

	if err := s.verifyImage(ctx, r); err != nil {
		return err
	}

	r.tracker.TransitionToPhase(progress.PhaseNixBuild, "Fetching firmware sources")

	_, err := r.builder.ExecuteScript(ctx, "clone firmware repository", []string{
		"rm -rf " + nixSourceDir,
		"git clone --progress --depth 1 --branch " + matrix.ShellQuote(r.branch) + " " + matrix.ShellQuote(repositoryURL(r.repository)) + " " + nixSourceDir,
	}, r.mw)
	if err != nil {
		return asKind(err, KindWorkspace)
	}

	return nil
}

// verifyImage builds the toolchain image from its build context when it is
// missing, or pulls it when there is no context.
func (s moergoSteps) verifyImage(ctx context.Context, r *run) error {
	name, tag := docker.SplitImage(r.image)
	if s.runtime.ImageExists(ctx, name, tag) {
		return nil
	}

	buildContext := r.cfg.Toolchain.BuildContext
	if buildContext == "" {
		return s.pullIfMissing(ctx, r)
	}

	r.log.Info("building toolchain image", "image", r.image, "context", buildContext)

	res, err := s.runtime.BuildImage(ctx, buildContext, name, tag, r.imageOutput())
	if err != nil {
		return newError(KindWorkspace, "build toolchain image", err)
	}

	if res.ExitCode != 0 {
		return errorf(KindWorkspace, "build toolchain image", "failed to build %s: exit code %d", r.image, res.ExitCode)
	}

	return nil
}

// build runs nix-build against the staged keymap and config.
func (moergoSteps) build(ctx context.Context, r *run) error {
	tc := r.cfg.Toolchain
	attr := tc.Attribute
	if attr == "" {
		attr = DefaultNixAttr
	}

	firmware := firmwareName(r.cfg)
	configDir := path.Join(WorkspaceMount, DefaultConfigPath)

	nix := []string{"nix-build", "./" + nixSourceDir, "-A", attr,
		"--arg", "keymap", path.Join(configDir, filepath.Base(r.job.KeymapFile)),
	}
	if r.job.ConfigFile != "" {
		nix = append(nix, "--arg", "kconfig", path.Join(configDir, filepath.Base(r.job.ConfigFile)))
	}

	nix = append(nix, "-o", "/tmp/result")

	_, err := r.builder.ExecuteScript(ctx, "nix build", []string{
		matrix.ShellJoin(nix),
		"mkdir -p " + ArtifactsDir,
		"cp " + matrix.ShellQuote("/tmp/result/"+firmware) + " " + matrix.ShellQuote(path.Join(ArtifactsDir, firmware)),
	}, r.mw)

	return err
}

func firmwareName(cfg *CompilationConfig) string {
	if cfg.Toolchain != nil && cfg.Toolchain.Firmware != "" {
		return cfg.Toolchain.Firmware
	}

	return DefaultNixFirmware
}
