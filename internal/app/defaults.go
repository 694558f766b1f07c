package app

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// appName is the directory name used under the XDG base directories.
const appName = "smart-claimer"

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CLAIMER_CONFIG_PATH: config file location (default: $XDG_CONFIG_HOME/smart-claimer/config.toml)
//   - CLAIMER_HOME: base directory for claimer data (default: $XDG_DATA_HOME/smart-claimer)
func GetDefaults() (map[string]string, error) {
	baseDir := getBaseDir()
	return map[string]string{
		"config_path": getConfigPath(),
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() string {
	if path := os.Getenv("CLAIMER_CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

func getBaseDir() string {
	if path := os.Getenv("CLAIMER_HOME"); path != "" {
		return path
	}
	return filepath.Join(xdg.DataHome, appName)
}
