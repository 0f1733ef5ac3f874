package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
)

// NewAreaFromConfig creates a scratch area. The memory type keeps copies in
// memory and records launches instead of starting a viewer.
func NewAreaFromConfig(cfg config.ScratchConfig) (*Area, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DirName)
	}

	switch cfg.Type {
	case "filesystem", "":
		return NewArea(afero.NewOsFs(), afero.NewOsFs(), dir, OSLauncher{}), nil
	case "memory":
		return NewArea(afero.NewOsFs(), afero.NewMemMapFs(), dir, &RecordingLauncher{}), nil
	default:
		return nil, fmt.Errorf("unknown scratch type: %s", cfg.Type)
	}
}
