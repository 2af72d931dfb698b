package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/config"
	"github.com/Norgate-AV/kbfw/internal/ctxlog"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/telemetry"
	"github.com/Norgate-AV/kbfw/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "kbfw KEYMAP [CONFIG]",
	Short: "ZMK firmware compiler",
	Long: `Compile ZMK keyboard firmware in a container from a keymap and an
optional Kconfig fragment, reusing cached west workspaces between builds.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.RangeArgs(0, 2),
}

// newRuntime creates the container runtime used by every command.
var newRuntime = func() docker.Runtime {
	return docker.NewCLI("")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("silent", "s", false, "Suppress container output on the console")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("trace", false, "Print OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().String("cache-dir", "", "Workspace cache directory")
	rootCmd.PersistentFlags().String("cache-backend", "", "Cache metadata backend (bolt, redis, memory)")
	addBuildFlags(rootCmd)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(strategiesCmd)
}

// startSession attaches the logger to the command context and starts
// tracing when enabled. The returned func flushes the tracer.
func startSession(cmd *cobra.Command, cfg *config.Config) (context.Context, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := ctxlog.New(cmd.ErrOrStderr(), cfg.Verbose)
	ctx = ctxlog.WithLogger(ctx, log)

	if !cfg.Trace {
		return ctx, func() {}, nil
	}

	shutdown, err := telemetry.InitTracer(cmd.ErrOrStderr(), version.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return ctx, func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}, nil
}

// openCache opens the workspace cache with the configured backend.
func openCache(cfg *config.Config) (*cache.Manager, error) {
	root := cfg.CacheDir
	if root == "" {
		r, err := cache.DefaultRoot()
		if err != nil {
			return nil, err
		}

		root = r
	}

	opts := []cache.Option{cache.WithTTL(cfg.CacheTTL)}

	if cfg.CacheBackend != cache.BackendBolt {
		store, err := cache.OpenStore(cfg.StoreOptions(root))
		if err != nil {
			return nil, fmt.Errorf("failed to open cache store: %w", err)
		}

		opts = append(opts, cache.WithStore(store))
	}

	return cache.New(root, opts...)
}
