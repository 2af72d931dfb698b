package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWorkspace(t *testing.T, dir string) {
	t.Helper()

	files := map[string]string{
		"zmk/app/CMakeLists.txt":        "cmake_minimum_required(VERSION 3.20.0)\n",
		"zephyr/VERSION":                "VERSION_MAJOR = 3\n",
		"modules/hal/nordic/README.txt": "nordic hal\n",
		".west/config":                  "[manifest]\npath = zmk/app\nfile = west.yml\n",
	}

	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestCacheCommands(t *testing.T) {
	cacheDir := isolateConfig(t)

	out, err := execute(t, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No cached workspaces in "+cacheDir)

	workspace := t.TempDir()
	makeWorkspace(t, workspace)

	out, err = execute(t, "cache", "add", workspace)
	require.NoError(t, err)
	assert.Contains(t, out, "Cached zmkfirmware/zmk (repo)")
	assert.Contains(t, out, "Cached zmkfirmware/zmk (repo_branch)")

	_, err = execute(t, "cache", "add", workspace)
	require.Error(t, err, "existing entry without --force")

	out, err = execute(t, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "REPOSITORY")
	assert.Contains(t, out, "zmkfirmware/zmk")

	out, err = execute(t, "cache", "cleanup", "--max-age", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 stale entries")

	out, err = execute(t, "cache", "delete", "zmkfirmware/zmk")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted cached workspace for zmkfirmware/zmk")

	out, err = execute(t, "cache", "delete", "zmkfirmware/zmk")
	require.NoError(t, err)
	assert.Contains(t, out, "No cached workspace for zmkfirmware/zmk")
}

func TestCacheCleanup_NegativeAge(t *testing.T) {
	isolateConfig(t)

	_, err := execute(t, "cache", "cleanup", "--max-age", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max-age must not be negative")

	// reset the flag for later runs
	require.NoError(t, cacheCleanupCmd.Flags().Set("max-age", "168"))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "5m", formatAge(5*time.Minute))
	assert.Equal(t, "36h", formatAge(36*time.Hour))
	assert.Equal(t, "3d", formatAge(72*time.Hour))
}
