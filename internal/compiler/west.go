package compiler

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/matrix"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

// WestStrategy builds in a workspace generated from a west manifest that
// imports the firmware repository at the configured branch.
type WestStrategy struct {
	base
}

// NewWestStrategy creates the generic west workspace strategy.
func NewWestStrategy() *WestStrategy {
	return &WestStrategy{}
}

func (s *WestStrategy) Name() string { return progress.StrategyWest }

func (s *WestStrategy) Matches(cfg *CompilationConfig) bool {
	return cfg.West != nil
}

func (s *WestStrategy) ValidateConfig(cfg *CompilationConfig) error {
	if cfg.West == nil {
		return errorf(KindConfiguration, "validate config", "west workspace is required")
	}

	if cfg.BuildMatrix == nil {
		return errorf(KindConfiguration, "validate config", "build matrix is required")
	}

	for _, p := range cfg.West.Projects {
		if p.Name == "" {
			return errorf(KindConfiguration, "validate config", "west project name is required")
		}
	}

	return validateMatrix(cfg.BuildMatrix)
}

func (s *WestStrategy) Compile(ctx context.Context, job *Job) *BuildResult {
	return execute(ctx, westSteps{s}, s.runtime, job)
}

type westSteps struct {
	*WestStrategy
}

func (westSteps) name() string { return progress.StrategyWest }
func (westSteps) defaultImage() string { return DefaultZmkImage }
func (westSteps) cachesWorkspace() bool { return true }
func (westSteps) repositoryLine() *regexp.Regexp { return WestRepositoryLine }

func (westSteps) identity(cfg *CompilationConfig) (string, string) {
	return cfg.repository(cache.DefaultRepository), cfg.branch()
}

func (s westSteps) ensureImage(ctx context.Context, r *run) error {
	return s.pullIfMissing(ctx, r)
}

// prepare writes config/west.yml for the configured repository.
func (westSteps) prepare(_ context.Context, r *run) error {
	m, err := matrix.GenerateManifest(r.repository, r.branch, r.cfg.West.Projects...)
	if err != nil {
		return newError(KindConfiguration, "generate manifest", err)
	}

	data, err := m.Marshal()
	if err != nil {
		return newError(KindWorkspace, "generate manifest", err)
	}

	configDir := filepath.Join(r.workspace, DefaultConfigPath)
	if err := r.fs.MkdirAll(configDir); err != nil {
		return newError(KindWorkspace, "write manifest", err)
	}

	if err := r.fs.WriteBinary(filepath.Join(configDir, matrix.ManifestFileName), data); err != nil {
		return newError(KindWorkspace, "write manifest", err)
	}

	r.matrix = r.cfg.BuildMatrix
	r.repositories = m.RepositoryCount()

	return nil
}

func (westSteps) fetch(ctx context.Context, r *run) error {
	return westFetch(ctx, r)
}

func (s westSteps) build(ctx context.Context, r *run) error {
	return westBuild(ctx, r, r.cfg.West.ExtraModules)
}
