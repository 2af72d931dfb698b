// Package compiler selects and drives firmware build strategies.
package compiler

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/ctxlog"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/fsio"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

const tracerName = "github.com/Norgate-AV/kbfw/internal/compiler"

// Coordinator picks the first matching strategy for a config and runs it.
type Coordinator struct {
	runtime    docker.Runtime
	strategies []Strategy
	fs         fsio.FileAdapter
	cache      *cache.Manager
	progress   progress.Callback
	middleware docker.Middleware
	buildLog   docker.Middleware
	buildInfo  io.Writer
	user       docker.UserContext
	workRoot   string
	tracer     trace.Tracer
	newID      func() string
	now        func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStrategies replaces the default strategies. Order is priority.
func WithStrategies(s ...Strategy) Option {
	return func(c *Coordinator) { c.strategies = s }
}

// WithFS sets the filesystem the pipeline reads and writes through.
func WithFS(fs fsio.FileAdapter) Option {
	return func(c *Coordinator) { c.fs = fs }
}

// WithCache enables the workspace cache.
func WithCache(m *cache.Manager) Option {
	return func(c *Coordinator) { c.cache = m }
}

// WithProgress sets the callback receiving progress snapshots.
func WithProgress(cb progress.Callback) Option {
	return func(c *Coordinator) { c.progress = cb }
}

// WithMiddleware adds output processing after progress parsing.
func WithMiddleware(mw docker.Middleware) Option {
	return func(c *Coordinator) { c.middleware = mw }
}

// WithBuildLog records every container line before any other processing.
func WithBuildLog(mw docker.Middleware) Option {
	return func(c *Coordinator) { c.buildLog = mw }
}

// WithBuildInfo prints the resolved build commands to w.
func WithBuildInfo(w io.Writer) Option {
	return func(c *Coordinator) { c.buildInfo = w }
}

// WithUser maps container processes onto a host user.
func WithUser(u docker.UserContext) Option {
	return func(c *Coordinator) { c.user = u }
}

// WithWorkRoot sets where temporary build workspaces are created.
func WithWorkRoot(dir string) Option {
	return func(c *Coordinator) { c.workRoot = dir }
}

// WithIDGenerator overrides build id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// WithClock overrides the clock used for build info timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// DefaultStrategies returns the strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewZmkConfigStrategy(),
		NewWestStrategy(),
		NewMoergoStrategy(),
	}
}

// NewCoordinator creates a coordinator over a container runtime.
func NewCoordinator(rt docker.Runtime, opts ...Option) *Coordinator {
	c := &Coordinator{
		runtime:    rt,
		strategies: DefaultStrategies(),
		fs:         fsio.NewOS(),
		tracer:     otel.Tracer(tracerName),
		newID:      uuid.NewString,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, s := range c.strategies {
		s.SetRuntime(rt)
	}

	return c
}

// Compile selects a strategy and runs it. It never panics; every failure
// is reported in the result.
func (c *Coordinator) Compile(ctx context.Context, keymapFile, configFile, outputDir string, cfg *CompilationConfig, profile Profile) (result *BuildResult) {
	buildID := c.newID()
	log := ctxlog.FromContext(ctx).With("build_id", buildID)
	ctx = ctxlog.WithLogger(ctx, log)

	ctx, span := c.tracer.Start(ctx, "compile", trace.WithAttributes(
		attribute.String("kbfw.build_id", buildID),
		attribute.String("kbfw.profile", profile.String()),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			log.Error("strategy panicked", "panic", p, "stack", string(debug.Stack()))
			result = failed(buildID, errorf(KindBuildExecution, "compile", "internal error: %v", p))
		}

		if result != nil && !result.Success {
			span.SetStatus(codes.Error, fmt.Sprint(result.Errors))
		}
	}()

	if cfg == nil {
		return failed(buildID, errorf(KindConfiguration, "compile", "compilation config is required"))
	}

	strategy, err := c.selectStrategy(ctx, cfg)
	if err != nil {
		return failed(buildID, err)
	}

	span.SetAttributes(attribute.String("kbfw.strategy", strategy.Name()))
	log.Info("compiling", "strategy", strategy.Name(), "keymap", keymapFile, "output", outputDir)

	ctx, execSpan := c.tracer.Start(ctx, "strategy."+strategy.Name())
	defer execSpan.End()

	strategy.SetRuntime(c.runtime)

	result = strategy.Compile(ctx, &Job{
		KeymapFile: keymapFile,
		ConfigFile: configFile,
		OutputDir:  outputDir,
		Config:     cfg,
		Profile:    profile,
		BuildID:    buildID,
		FS:         c.fs,
		Cache:      c.cache,
		Progress:   c.progress,
		Middleware: c.middleware,
		BuildLog:   c.buildLog,
		BuildInfo:  c.buildInfo,
		User:       c.user,
		WorkRoot:   c.workRoot,
		Now:        c.now,
	})

	if result == nil {
		result = failed(buildID, errorf(KindBuildExecution, "compile", "strategy %s returned no result", strategy.Name()))
	}

	result.BuildID = buildID
	result.Strategy = strategy.Name()

	if !result.Success && len(result.Errors) == 0 {
		result.AddError(errorf(KindBuildExecution, "compile", "build failed"))
	}

	execSpan.SetAttributes(attribute.Bool("kbfw.success", result.Success), attribute.Bool("kbfw.from_cache", result.FromCache))

	return result
}

// selectStrategy returns the first strategy, in priority order, whose
// predicate matches, that is available and that accepts the config. A
// non-empty tag restricts the search to that strategy.
func (c *Coordinator) selectStrategy(ctx context.Context, cfg *CompilationConfig) (Strategy, error) {
	ctx, span := c.tracer.Start(ctx, "select_strategy")
	defer span.End()

	log := ctxlog.FromContext(ctx)

	if cfg.Strategy != "" && c.lookup(cfg.Strategy) == nil {
		return nil, errorf(KindStrategySelection, "select strategy", "%w: unknown strategy %q", ErrStrategySelection, cfg.Strategy)
	}

	var lastErr error

	for _, s := range c.strategies {
		if cfg.Strategy != "" && s.Name() != cfg.Strategy {
			continue
		}

		if !s.Matches(cfg) {
			log.Debug("strategy does not match", "strategy", s.Name())
			continue
		}

		if !s.IsAvailable(ctx) {
			log.Debug("strategy unavailable", "strategy", s.Name())
			continue
		}

		if err := s.ValidateConfig(cfg); err != nil {
			log.Debug("strategy rejected config", "strategy", s.Name(), "error", err)
			lastErr = err

			continue
		}

		span.SetAttributes(attribute.String("kbfw.strategy", s.Name()))

		return s, nil
	}

	if lastErr != nil {
		return nil, errorf(KindStrategySelection, "select strategy", "%w: %w", ErrStrategySelection, lastErr)
	}

	return nil, newError(KindStrategySelection, "select strategy", ErrStrategySelection)
}

func (c *Coordinator) lookup(name string) Strategy {
	for _, s := range c.strategies {
		if s.Name() == name {
			return s
		}
	}

	return nil
}

// ValidateConfig reports whether any strategy matching the config accepts it.
func (c *Coordinator) ValidateConfig(cfg *CompilationConfig) bool {
	if cfg == nil {
		return false
	}

	for _, s := range c.strategies {
		if cfg.Strategy != "" && s.Name() != cfg.Strategy {
			continue
		}

		if s.Matches(cfg) && s.ValidateConfig(cfg) == nil {
			return true
		}
	}

	return false
}

// CheckAvailable reports whether the runtime is reachable and at least one
// strategy is available.
func (c *Coordinator) CheckAvailable(ctx context.Context) bool {
	if c.runtime == nil || !c.runtime.IsAvailable(ctx) {
		return false
	}

	return len(c.ListAvailableStrategies(ctx)) > 0
}

// ListAvailableStrategies names the available strategies in priority order.
func (c *Coordinator) ListAvailableStrategies(ctx context.Context) []string {
	var names []string

	for _, s := range c.strategies {
		if s.IsAvailable(ctx) {
			names = append(names, s.Name())
		}
	}

	return names
}
