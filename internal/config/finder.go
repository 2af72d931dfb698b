package config

import (
	"os"
	"path/filepath"
)

// ConfigExts are the config file formats searched for, in order.
var ConfigExts = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range ConfigExts {
			path := filepath.Join(dir, ".kbfw."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// GlobalConfigDir returns the directory holding the user wide config. APPDATA
// wins when set, then the platform user config directory.
func GlobalConfigDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "kbfw")
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "kbfw")
}

// FindGlobalConfig returns the first global config file present, if any.
func FindGlobalConfig() string {
	dir := GlobalConfigDir()
	if dir == "" {
		return ""
	}

	for _, ext := range ConfigExts {
		path := filepath.Join(dir, "config."+ext)

		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
