// Package scratch copies files the operator wants to inspect into a private
// directory and opens them there, so a viewer never locks the original on
// the file server.
package scratch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// DirName is the scratch directory created under the system temp directory.
const DirName = "slug_sweep_deduper_open"

// Launcher opens a file with the platform's default application.
type Launcher interface {
	Launch(path string) error
}

// Area implements sweep.Scratch. Copies are read from src and written to dst
// under dir.
type Area struct {
	src      afero.Fs
	dst      afero.Fs
	dir      string
	launcher Launcher

	mu      sync.Mutex
	created bool
}

var _ sweep.Scratch = (*Area)(nil)

func NewArea(src, dst afero.Fs, dir string, launcher Launcher) *Area {
	return &Area{src: src, dst: dst, dir: dir, launcher: launcher}
}

// Dir returns the scratch directory.
func (a *Area) Dir() string {
	return a.dir
}

// Open copies localPath into the scratch directory, replacing an earlier copy
// with the same name, and launches the copy.
func (a *Area) Open(localPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	info, err := a.src.Stat(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("opening %s: is a directory", localPath)
	}

	if err := a.dst.MkdirAll(a.dir, 0700); err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	a.created = true

	dest := filepath.Join(a.dir, filepath.Base(localPath))
	if err := a.copy(localPath, dest); err != nil {
		return err
	}

	if err := a.launcher.Launch(dest); err != nil {
		return fmt.Errorf("launching viewer for %s: %w", dest, err)
	}
	return nil
}

func (a *Area) copy(srcPath, destPath string) error {
	in, err := a.src.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer in.Close()

	out, err := a.dst.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating scratch copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		a.dst.Remove(destPath)
		return fmt.Errorf("copying %s: %w", srcPath, err)
	}
	return out.Close()
}

// Cleanup removes the scratch directory if Open ever created it.
func (a *Area) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.created {
		return nil
	}
	if err := a.dst.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("removing scratch directory: %w", err)
	}
	a.created = false
	return nil
}
