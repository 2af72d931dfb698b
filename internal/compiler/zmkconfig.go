package compiler

import (
	"context"
	"path"
	"path/filepath"
	"regexp"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/matrix"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

// configRepoDir is where the config repository is cloned in the workspace.
const configRepoDir = "config-repo"

// ZmkConfigStrategy builds from a user config repository: its config/
// directory seeds the workspace and its build.yaml supplies the matrix when
// none is given.
type ZmkConfigStrategy struct {
	base
}

// NewZmkConfigStrategy creates the config repository strategy.
func NewZmkConfigStrategy() *ZmkConfigStrategy {
	return &ZmkConfigStrategy{}
}

func (s *ZmkConfigStrategy) Name() string { return progress.StrategyZmkConfig }

func (s *ZmkConfigStrategy) Matches(cfg *CompilationConfig) bool {
	return cfg.ZmkConfig != nil
}

func (s *ZmkConfigStrategy) ValidateConfig(cfg *CompilationConfig) error {
	if cfg.ZmkConfig == nil {
		return errorf(KindConfiguration, "validate config", "config repository is required")
	}

	if cfg.ZmkConfig.Repository == "" {
		return errorf(KindConfiguration, "validate config", "config repository name is required")
	}

	if p := cfg.ZmkConfig.ConfigPath; p != "" && !filepath.IsLocal(p) {
		return errorf(KindConfiguration, "validate config", "config path %q must be relative to the repository", p)
	}

	return validateMatrix(cfg.BuildMatrix)
}

func (s *ZmkConfigStrategy) Compile(ctx context.Context, job *Job) *BuildResult {
	return execute(ctx, zmkConfigSteps{s}, s.runtime, job)
}

type zmkConfigSteps struct {
	*ZmkConfigStrategy
}

func (zmkConfigSteps) name() string { return progress.StrategyZmkConfig }
func (zmkConfigSteps) defaultImage() string { return DefaultZmkImage }
func (zmkConfigSteps) cachesWorkspace() bool { return true }
func (zmkConfigSteps) repositoryLine() *regexp.Regexp { return WestRepositoryLine }

func (zmkConfigSteps) identity(cfg *CompilationConfig) (string, string) {
	return cfg.repository(cache.DefaultRepository), cfg.branch()
}

func (s zmkConfigSteps) ensureImage(ctx context.Context, r *run) error {
	return s.pullIfMissing(ctx, r)
}

// prepare clones the config repository, copies its config directory into
// place and loads the build matrix and manifest from it.
func (zmkConfigSteps) prepare(ctx context.Context, r *run) error {
	repo := r.cfg.ZmkConfig
	configPath := repo.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	clone := "git clone --depth 1"
	if repo.Branch != "" {
		clone += " --branch " + matrix.ShellQuote(repo.Branch)
	}

	clone += " " + matrix.ShellQuote(repositoryURL(repo.Repository)) + " " + configRepoDir

	_, err := r.builder.ExecuteScript(ctx, "clone config repository", []string{
		"rm -rf " + configRepoDir + " " + DefaultConfigPath,
		clone,
		"cp -R " + matrix.ShellQuote(path.Join(configRepoDir, configPath)) + " " + DefaultConfigPath,
	}, r.mw)
	if err != nil {
		return asKind(err, KindWorkspace)
	}

	r.matrix = r.cfg.BuildMatrix
	if r.matrix == nil {
		file := repo.BuildMatrixFile
		if file == "" {
			file = matrix.DefaultFileName
		}

		m, err := matrix.Load(r.fs, filepath.Join(r.workspace, configRepoDir, file))
		if err != nil {
			return newError(KindConfiguration, "load build matrix", err)
		}

		r.matrix = m
	}

	r.repositories = manifestRepositories(r)

	return nil
}

func (zmkConfigSteps) fetch(ctx context.Context, r *run) error {
	return westFetch(ctx, r)
}

func (zmkConfigSteps) build(ctx context.Context, r *run) error {
	return westBuild(ctx, r, nil)
}

// manifestRepositories estimates the west update total from config/west.yml.
func manifestRepositories(r *run) int {
	m, err := matrix.LoadManifest(r.fs, filepath.Join(r.workspace, DefaultConfigPath, matrix.ManifestFileName))
	if err != nil {
		r.log.Debug("no manifest to count repositories", "error", err)
		return 0
	}

	return m.RepositoryCount()
}
