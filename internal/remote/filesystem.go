package remote

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// FileSystemStore keeps objects as files in one directory, typically on a
// network share.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *FileSystemStore) Exists(name string) (bool, error) {
	info, err := os.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", s.path(name), err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", s.path(name))
	}
	return true, nil
}

func (s *FileSystemStore) Get(name string, w io.Writer) error {
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, s.path(name))
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Put writes through a temp file in the same directory and renames it over
// the destination.
func (s *FileSystemStore) Put(name string, r io.Reader, size int64) error {
	if err := atomic.WriteFile(s.path(name), &sizeReader{r: r, want: size}); err != nil {
		return fmt.Errorf("writing %s: %w", s.path(name), err)
	}
	return nil
}

func (s *FileSystemStore) Describe(name string) string {
	return s.path(name)
}

var _ sweep.RemoteStore = (*FileSystemStore)(nil)
