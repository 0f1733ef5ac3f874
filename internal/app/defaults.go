package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	configPathEnv = "SSD_CONFIG_PATH"
	homeEnv       = "SSD_HOME"
)

// GetDefaults resolves config_path, base_dir and log_dir. SSD_CONFIG_PATH and
// SSD_HOME take precedence over the XDG locations under the home directory.
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(configPathEnv, ".config", "ssd.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(homeEnv, ".local", "share", "ssd")
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func envOrHome(key string, rel ...string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory for %s: %w", key, err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}
