package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/kbfw/internal/cache"
)

// EnvPrefix prefixes every environment variable override, e.g.
// KBFW_CACHE_BACKEND for cache.backend.
const EnvPrefix = "KBFW"

// flagKeys maps command flags to configuration keys.
var flagKeys = map[string]string{
	"verbose":       "verbose",
	"silent":        "silent",
	"trace":         "trace",
	"cache-dir":     "cache_dir",
	"cache-backend": "cache.backend",
	"no-cache":      "no_cache",
	"image":         "docker.image",
	"strategy":      "strategy",
	"repository":    "repository",
	"branch":        "branch",
	"log":           "build_log",
}

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration specifically for build operations. The
// local config is searched for from the keymap's directory.
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	dir := ""
	if len(args) > 0 {
		if abs, err := filepath.Abs(args[0]); err == nil {
			dir = filepath.Dir(abs)
		}
	}

	return l.load(cmd, dir)
}

// LoadForCommand loads configuration for commands that take no input
// files. The local config is searched for from the working directory.
func (l *Loader) LoadForCommand(cmd *cobra.Command) (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		dir = ""
	}

	return l.load(cmd, dir)
}

func (l *Loader) load(cmd *cobra.Command, dir string) (*Config, error) {
	l.loadDotEnv()
	l.setupViperDefaults()
	l.setupEnv()
	l.loadGlobalConfig()
	l.loadLocalConfig(dir)
	l.bindCommandFlags(cmd)

	return Load()
}

// loadDotEnv exports variables from a .env file in the working directory.
// Variables already set in the environment win.
func (l *Loader) loadDotEnv() {
	_ = godotenv.Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("cache.backend", DefaultCacheBackend)
	viper.SetDefault("docker.user_mapping", DefaultUserMapping)
	viper.SetDefault("repository", DefaultRepository)
	viper.SetDefault("branch", DefaultBranch)
	viper.SetDefault("silent", DefaultSilent)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("trace", DefaultTrace)

	for tier, d := range cache.DefaultTTL {
		viper.SetDefault("cache.ttl."+string(tier), d)
	}
}

// setupEnv maps KBFW_* environment variables onto keys.
func (l *Loader) setupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadGlobalConfig loads the user wide configuration
func (l *Loader) loadGlobalConfig() {
	if path := FindGlobalConfig(); path != "" {
		viper.SetConfigFile(path)
		_ = viper.ReadInConfig()
	}
}

// loadLocalConfig merges the nearest .kbfw config over the global one
func (l *Loader) loadLocalConfig(dir string) {
	if dir == "" {
		return
	}

	localPath := FindLocalConfig(dir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
