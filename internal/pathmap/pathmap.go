// Package pathmap translates between local file server paths and the
// canonical, forward-slash relative locations stored in the catalog.
package pathmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrPathOutsideMount is matched by errors for paths that do not live under
// the file server mount.
var ErrPathOutsideMount = errors.New("path is outside the file server mount")

// OutsideMountError reports the offending path and mount.
type OutsideMountError struct {
	Path  string
	Mount string
}

func (e *OutsideMountError) Error() string {
	return fmt.Sprintf("%s is not under the file server mount %s", e.Path, e.Mount)
}

func (e *OutsideMountError) Unwrap() error { return ErrPathOutsideMount }

// ToLocal builds a local path from the mount, a canonical location and an
// optional filename. The canonical location is split on "/" only.
func ToLocal(mount, canonical, filename string) string {
	parts := []string{mount}
	for _, seg := range strings.Split(canonical, "/") {
		if seg == "" || seg == "." {
			continue
		}
		parts = append(parts, seg)
	}
	if filename != "" {
		parts = append(parts, filename)
	}
	return filepath.Join(parts...)
}

// ToCanonical returns the location of localPath relative to mount, using "/"
// separators on every host. The mount itself maps to "". Drive-letter and
// network-share paths are handled on any host.
func ToCanonical(localPath, mount string) (string, error) {
	if IsWindowsPath(localPath) || IsWindowsPath(mount) {
		return windowsRelative(localPath, mount)
	}

	full, err := resolve(localPath)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", localPath, err)
	}
	base, err := resolve(mount)
	if err != nil {
		return "", fmt.Errorf("resolving mount %s: %w", mount, err)
	}

	rel, err := filepath.Rel(base, full)
	if err != nil {
		return "", &OutsideMountError{Path: localPath, Mount: mount}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &OutsideMountError{Path: localPath, Mount: mount}
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// resolve expands "~", makes p absolute and follows symlinks in the longest
// existing prefix of p. The path itself need not exist.
func resolve(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}

	existing, rest := abs, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return abs, nil
	}
	return filepath.Join(real, rest), nil
}

func windowsRelative(localPath, mount string) (string, error) {
	full := cleanSegments(SplitPath(localPath))
	base := cleanSegments(SplitPath(mount))
	if len(base) == 0 || len(full) < len(base) {
		return "", &OutsideMountError{Path: localPath, Mount: mount}
	}
	for i := range base {
		if !strings.EqualFold(full[i], base[i]) {
			return "", &OutsideMountError{Path: localPath, Mount: mount}
		}
	}
	return strings.Join(full[len(base):], "/"), nil
}

// cleanSegments applies "." and ".." segments. The root segment is never popped.
func cleanSegments(segs []string) []string {
	out := make([]string, 0, len(segs))
	for i, s := range segs {
		switch {
		case s == ".":
		case s == ".." && i > 0:
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	return out
}
