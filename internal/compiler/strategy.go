package compiler

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/fsio"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

// Strategy is one interchangeable build pipeline.
type Strategy interface {
	Name() string

	// Matches reports whether the config carries this strategy's payload.
	Matches(cfg *CompilationConfig) bool
	IsAvailable(ctx context.Context) bool
	ValidateConfig(cfg *CompilationConfig) error

	// SetRuntime injects the container runtime before Compile is called.
	SetRuntime(rt docker.Runtime)
	Compile(ctx context.Context, job *Job) *BuildResult
}

// Job is one compile request handed to a strategy.
type Job struct {
	KeymapFile string
	ConfigFile string
	OutputDir  string
	Config     *CompilationConfig
	Profile    Profile
	BuildID    string

	FS         fsio.FileAdapter
	Cache      *cache.Manager
	Progress   progress.Callback
	Middleware docker.Middleware
	User       docker.UserContext

	// BuildLog sees every container line before progress parsing.
	BuildLog docker.Middleware

	// BuildInfo receives the resolved build commands when set.
	BuildInfo io.Writer

	// WorkRoot holds temporary build workspaces; empty means the OS
	// temporary directory.
	WorkRoot string
	Now      func() time.Time
}

// steps are the strategy specific parts of the shared pipeline.
type steps interface {
	name() string
	defaultImage() string

	// identity is the repository and branch the workspace cache is keyed by.
	identity(cfg *CompilationConfig) (string, string)
	cachesWorkspace() bool
	repositoryLine() *regexp.Regexp

	ensureImage(ctx context.Context, r *run) error
	prepare(ctx context.Context, r *run) error
	fetch(ctx context.Context, r *run) error
	build(ctx context.Context, r *run) error
}

// base holds the injected runtime shared by every strategy.
type base struct {
	runtime docker.Runtime
}

func (b *base) SetRuntime(rt docker.Runtime) {
	b.runtime = rt
}

func (b *base) IsAvailable(ctx context.Context) bool {
	return b.runtime != nil && b.runtime.IsAvailable(ctx)
}

// pullIfMissing makes sure image is present locally.
func (b *base) pullIfMissing(ctx context.Context, r *run) error {
	name, tag := docker.SplitImage(r.image)
	if b.runtime.ImageExists(ctx, name, tag) {
		return nil
	}

	r.log.Info("pulling image", "image", r.image)

	res, err := b.runtime.PullImage(ctx, name, tag, r.imageOutput())
	if err != nil {
		return newError(KindWorkspace, "pull image", err)
	}

	if res.ExitCode != 0 {
		return errorf(KindWorkspace, "pull image", "failed to pull %s: exit code %d", r.image, res.ExitCode)
	}

	return nil
}

var (
	_ Strategy = (*ZmkConfigStrategy)(nil)
	_ Strategy = (*WestStrategy)(nil)
	_ Strategy = (*MoergoStrategy)(nil)
)
