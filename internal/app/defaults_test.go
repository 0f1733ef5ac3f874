package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("SSD_CONFIG_PATH", "/custom/ssd.toml")
		t.Setenv("SSD_HOME", "/custom/ssd")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/ssd.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/ssd.toml")
		}
		if defaults["base_dir"] != "/custom/ssd" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/ssd")
		}
		if want := filepath.Join("/custom/ssd", "log"); defaults["log_dir"] != want {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], want)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("SSD_CONFIG_PATH", "")
		t.Setenv("SSD_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "ssd.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "ssd")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}
