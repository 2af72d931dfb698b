package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/kbfw/internal/compiler"
	"github.com/Norgate-AV/kbfw/internal/config"
	"github.com/Norgate-AV/kbfw/internal/ctxlog"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/fsio"
	"github.com/Norgate-AV/kbfw/internal/matrix"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

const (
	keymapExt = ".keymap"
	confExt   = ".conf"

	defaultOutputDir = "firmware"
)

var buildCmd = &cobra.Command{
	Use:   "build KEYMAP [CONFIG]",
	Short: "Build ZMK firmware",
	Long: `Compile a keymap and optional Kconfig fragment into UF2 firmware.

The strategy is picked from the flags given: --config-repo builds from a
zmk-config repository, --toolchain-context builds a Glove80 firmware with
the MoErgo nix toolchain, and anything else builds a west workspace
generated from --repository and --matrix.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.RangeArgs(0, 2),
}

func init() {
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", defaultOutputDir, "Directory receiving the firmware")
	cmd.Flags().StringP("matrix", "m", "", "build.yaml listing the boards and shields to build")
	cmd.Flags().String("strategy", "", "Force a strategy (zmk_config, west, moergo)")
	cmd.Flags().String("repository", "", "Firmware repository (owner/name or URL)")
	cmd.Flags().String("branch", "", "Firmware branch")
	cmd.Flags().String("image", "", "Container image override")
	cmd.Flags().Bool("no-cache", false, "Disable the workspace cache")
	cmd.Flags().String("log", "", "Write a timestamped build log to this file")
	cmd.Flags().StringSlice("module", nil, "Extra zephyr module path inside the workspace (repeatable)")
	cmd.Flags().String("config-repo", "", "zmk-config repository to build from")
	cmd.Flags().String("config-branch", "", "zmk-config repository branch")
	cmd.Flags().String("config-path", compiler.DefaultConfigPath, "Config directory inside the zmk-config repository")
	cmd.Flags().String("toolchain-context", "", "Docker build context for the nix toolchain image")
	cmd.Flags().String("nix-attr", compiler.DefaultNixAttr, "nix attribute to build")
	cmd.Flags().String("nix-firmware", compiler.DefaultNixFirmware, "Firmware file produced by the nix build")
	cmd.Flags().String("keyboard", "", "Keyboard name recorded with the build")
	cmd.Flags().String("firmware", "", "Firmware version recorded with the build")
	cmd.Flags().Bool("keep-workspace", false, "Keep the temporary build workspace")
	cmd.Flags().Bool("json", false, "Print the build result as JSON")
}

func runBuild(cmd *cobra.Command, args []string) error {
	keymap, conf, err := buildInputs(args)
	if err != nil {
		return err
	}

	// load config
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, done, err := startSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer done()

	log := ctxlog.FromContext(ctx)

	compilation, err := compilationConfig(cmd, cfg)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	output, err = filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	opts := []compiler.Option{
		compiler.WithProgress(progressPrinter(cmd.ErrOrStderr(), cfg.Verbose)),
	}

	if cfg.UserMapping {
		opts = append(opts, compiler.WithUser(docker.CurrentUser()))
	}

	if compilation.UseCache {
		manager, err := openCache(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: workspace cache unavailable: %v\n", err)
			compilation.UseCache = false
		} else {
			defer manager.Close()
			opts = append(opts, compiler.WithCache(manager))
		}
	}

	if !cfg.Silent {
		opts = append(opts, compiler.WithMiddleware(compiler.NewEcho(cmd.OutOrStdout())))
	}

	if cfg.Verbose {
		opts = append(opts, compiler.WithBuildInfo(cmd.ErrOrStderr()))
	}

	if cfg.BuildLog != "" {
		f, err := os.OpenFile(cfg.BuildLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open build log: %w", err)
		}
		defer f.Close()

		opts = append(opts, compiler.WithBuildLog(compiler.NewBuildLog(f)))
	}

	profile := buildProfile(cmd)

	log.Debug("starting build",
		"keymap", keymap,
		"config", conf,
		"output", output,
		"strategy", compilation.Strategy,
		"cache", compilation.UseCache,
	)

	coordinator := compiler.NewCoordinator(newRuntime(), opts...)
	result := coordinator.Compile(ctx, keymap, conf, output, compilation, profile)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printResult(cmd.OutOrStdout(), result)
	}

	return describeFailure(result.Err())
}

// describeFailure turns a killed build into a cancellation message.
func describeFailure(err error) error {
	if kind, ok := compiler.KindOf(err); ok && kind == compiler.KindProcessKilled {
		return fmt.Errorf("build cancelled: %w", err)
	}

	return err
}

// buildInputs checks the positional arguments and resolves them to
// absolute paths.
func buildInputs(args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("requires a keymap file argument")
	}

	// check file extensions
	if !strings.EqualFold(filepath.Ext(args[0]), keymapExt) {
		return "", "", fmt.Errorf("keymap file must have %s extension", keymapExt)
	}

	if len(args) > 1 && !strings.EqualFold(filepath.Ext(args[1]), confExt) {
		return "", "", fmt.Errorf("config file must have %s extension", confExt)
	}

	keymap, err := filepath.Abs(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	var conf string
	if len(args) > 1 {
		conf, err = filepath.Abs(args[1])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
	}

	return keymap, conf, nil
}

// compilationConfig translates the loaded config and build flags into the
// payload the strategies match on.
func compilationConfig(cmd *cobra.Command, cfg *config.Config) (*compiler.CompilationConfig, error) {
	flags := cmd.Flags()

	cc := &compiler.CompilationConfig{
		Strategy:   cfg.Strategy,
		Image:      cfg.DockerImage,
		Repository: cfg.Repository,
		Branch:     cfg.Branch,
		UseCache:   !cfg.NoCache,
	}

	if path, _ := flags.GetString("matrix"); path != "" {
		m, err := matrix.Load(fsio.NewOS(), path)
		if err != nil {
			return nil, fmt.Errorf("failed to load build matrix: %w", err)
		}

		cc.BuildMatrix = m
	}

	configRepo, _ := flags.GetString("config-repo")
	toolchain, _ := flags.GetString("toolchain-context")

	switch {
	case configRepo != "" || cfg.Strategy == "zmk_config":
		branch, _ := flags.GetString("config-branch")
		path, _ := flags.GetString("config-path")

		cc.ZmkConfig = &compiler.ZmkConfigRepo{
			Repository: configRepo,
			Branch:     branch,
			ConfigPath: path,
		}

	case toolchain != "" || cfg.Strategy == "moergo":
		attr, _ := flags.GetString("nix-attr")
		firmware, _ := flags.GetString("nix-firmware")

		cc.Toolchain = &compiler.NixToolchain{
			BuildContext: toolchain,
			Attribute:    attr,
			Firmware:     firmware,
		}

		// nix builds default to the MoErgo fork
		if cc.Repository == config.DefaultRepository {
			cc.Repository = ""
		}

	default:
		modules, _ := flags.GetStringSlice("module")
		cc.West = &compiler.WestWorkspace{ExtraModules: modules}
	}

	return cc, nil
}

func buildProfile(cmd *cobra.Command) compiler.Profile {
	keyboard, _ := cmd.Flags().GetString("keyboard")
	firmware, _ := cmd.Flags().GetString("firmware")
	keep, _ := cmd.Flags().GetBool("keep-workspace")

	return compiler.Profile{Keyboard: keyboard, Firmware: firmware, KeepWorkspace: keep}
}

// progressPrinter prints a line per phase change, or every snapshot when
// verbose.
func progressPrinter(w io.Writer, verbose bool) progress.Callback {
	var mu sync.Mutex
	var last progress.Phase

	return func(s progress.Snapshot) {
		mu.Lock()
		defer mu.Unlock()

		if !verbose && s.Phase == last {
			return
		}

		last = s.Phase
		fmt.Fprintln(w, s.String())
	}
}

func printResult(w io.Writer, result *compiler.BuildResult) {
	for _, msg := range result.Messages {
		fmt.Fprintln(w, msg)
	}

	if !result.Success {
		fmt.Fprintf(w, "Build %s failed\n", result.BuildID)
	} else {
		source := "built"
		if result.FromCache {
			source = "from cache"
		}

		fmt.Fprintf(w, "Build %s succeeded (%s, %s)\n", result.BuildID, result.Strategy, source)
	}

	if result.OutputFiles.Empty() {
		return
	}

	for _, f := range result.OutputFiles.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
