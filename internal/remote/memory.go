package remote

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// MemoryStore keeps objects in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	putErr  error
	puts    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Exists(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[name]
	return ok, nil
}

func (m *MemoryStore) Get(name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

func (m *MemoryStore) Put(name string, r io.Reader, size int64) error {
	m.mu.Lock()
	putErr := m.putErr
	m.mu.Unlock()
	if putErr != nil {
		return putErr
	}

	data, err := io.ReadAll(&sizeReader{r: r, want: size})
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	m.puts++
	return nil
}

func (m *MemoryStore) Describe(name string) string {
	return "memory://" + name
}

// SetPutError makes every later Put fail with err. nil restores normal behavior.
func (m *MemoryStore) SetPutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// Puts returns how many Put calls succeeded.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Bytes returns a copy of the stored object, or nil.
func (m *MemoryStore) Bytes(name string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	if !ok {
		return nil
	}
	return bytes.Clone(data)
}

var _ sweep.RemoteStore = (*MemoryStore)(nil)
