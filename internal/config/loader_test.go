package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the global config at an empty directory and resets viper.
func isolate(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	appdata := t.TempDir()
	t.Setenv("APPDATA", appdata)

	return appdata
}

func writeGlobal(t *testing.T, appdata, name, content string) {
	t.Helper()
	dir := filepath.Join(appdata, "kbfw")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	viper.Reset()
	loader := NewLoader()
	loader.setupViperDefaults()

	assert.Equal(t, "bolt", viper.GetString("cache.backend"))
	assert.Equal(t, "zmkfirmware/zmk", viper.GetString("repository"))
	assert.Equal(t, "main", viper.GetString("branch"))
	assert.Equal(t, true, viper.GetBool("docker.user_mapping"))
	assert.Equal(t, 720*time.Hour, viper.GetDuration("cache.ttl.repo"))
	assert.Equal(t, time.Hour, viper.GetDuration("cache.ttl.build"))
	assert.Equal(t, false, viper.GetBool("silent"))
	assert.Equal(t, false, viper.GetBool("verbose"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	t.Run("loads yaml config", func(t *testing.T) {
		appdata := isolate(t)
		writeGlobal(t, appdata, "config.yml", `strategy: west
cache:
  backend: memory
verbose: true`)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "west", viper.GetString("strategy"))
		assert.Equal(t, "memory", viper.GetString("cache.backend"))
		assert.Equal(t, true, viper.GetBool("verbose"))
	})

	t.Run("loads toml config", func(t *testing.T) {
		appdata := isolate(t)
		writeGlobal(t, appdata, "config.toml", `branch = "v25.01"

[docker]
image = "zmkfirmware/zmk-dev-arm:3.5"`)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "v25.01", viper.GetString("branch"))
		assert.Equal(t, "zmkfirmware/zmk-dev-arm:3.5", viper.GetString("docker.image"))
	})

	t.Run("handles missing config gracefully", func(t *testing.T) {
		isolate(t)

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadGlobalConfig()
		})
		assert.Empty(t, viper.GetString("strategy"))
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	t.Run("walks up directory tree to find config", func(t *testing.T) {
		isolate(t)

		tempDir := t.TempDir()
		subDir := filepath.Join(tempDir, "keymaps", "corne")
		require.NoError(t, os.MkdirAll(subDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".kbfw.yml"), []byte(`repository: moergo-sc/zmk`), 0o644))

		loader := NewLoader()
		loader.loadLocalConfig(subDir)

		assert.Equal(t, "moergo-sc/zmk", viper.GetString("repository"))
	})

	t.Run("local overrides global", func(t *testing.T) {
		appdata := isolate(t)
		writeGlobal(t, appdata, "config.yml", "strategy: west\nbranch: develop\n")

		tempDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".kbfw.yml"), []byte("strategy: moergo\n"), 0o644))

		loader := NewLoader()
		loader.loadGlobalConfig()
		loader.loadLocalConfig(tempDir)

		assert.Equal(t, "moergo", viper.GetString("strategy"))
		assert.Equal(t, "develop", viper.GetString("branch"), "global keys survive the merge")
	})

	t.Run("empty dir is ignored", func(t *testing.T) {
		isolate(t)

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadLocalConfig("")
		})
	})
}

func TestLoader_LoadForBuild(t *testing.T) {
	appdata := isolate(t)
	writeGlobal(t, appdata, "config.yml", "strategy: west\nbranch: develop\n")

	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".kbfw.yml"), []byte("branch: v25.01\ncache:\n  backend: memory\n"), 0o644))

	keymap := filepath.Join(tempDir, "corne.keymap")
	require.NoError(t, os.WriteFile(keymap, []byte("/ {};"), 0o644))

	cmd := &cobra.Command{Use: "build"}
	cmd.Flags().String("strategy", "", "")
	cmd.Flags().Bool("verbose", false, "")
	require.NoError(t, cmd.Flags().Set("strategy", "zmk_config"))

	loader := NewLoader()
	cfg, err := loader.LoadForBuild(cmd, []string{keymap})
	require.NoError(t, err)

	assert.Equal(t, "zmk_config", cfg.Strategy, "flag beats global")
	assert.Equal(t, "v25.01", cfg.Branch, "local beats global")
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.False(t, cfg.Verbose, "unset flag keeps the default")
}

func TestLoader_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("KBFW_CACHE_BACKEND", "memory")
	t.Setenv("KBFW_STRATEGY", "moergo")
	t.Setenv("KBFW_CACHE_TTL_BUILD", "5m")

	loader := NewLoader()
	cfg, err := loader.LoadForBuild(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "moergo", cfg.Strategy)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL["build"])
}

func TestLoader_InvalidConfig(t *testing.T) {
	isolate(t)

	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".kbfw.yml"), []byte("strategy: qmk\n"), 0o644))

	loader := NewLoader()
	_, err := loader.LoadForBuild(nil, []string{filepath.Join(tempDir, "corne.keymap")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
}
