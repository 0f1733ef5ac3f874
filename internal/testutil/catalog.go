package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/aa-dank/slug-sweep-deduper/internal/model"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// FakeFinder is an in-memory catalog keyed by file id.
type FakeFinder struct {
	mu        sync.Mutex
	locations map[int64][]model.Location
	order     []int64
	FindErr   error
	closed    int
}

var _ sweep.DuplicateFinder = (*FakeFinder)(nil)

func NewFakeFinder() *FakeFinder {
	return &FakeFinder{locations: make(map[int64][]model.Location)}
}

// Add registers a location of fileID. Files are returned in the order they
// were first added.
func (f *FakeFinder) Add(fileID int64, directory, filename string, size int64) *FakeFinder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locations[fileID]; !ok {
		f.order = append(f.order, fileID)
	}
	f.locations[fileID] = append(f.locations[fileID], model.Location{
		Directory: directory,
		Filename:  filename,
		Size:      size,
	})
	return f
}

// Remove drops every location of fileID, as if the catalog changed mid-sweep.
func (f *FakeFinder) Remove(fileID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locations, fileID)
}

func (f *FakeFinder) FindDuplicates(_ context.Context, canonical string) ([]model.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}

	var out []model.FileRecord
	for _, id := range f.order {
		locs := f.locations[id]
		if len(locs) < 2 {
			continue
		}
		for _, l := range locs {
			if l.Directory != canonical {
				continue
			}
			out = append(out, model.FileRecord{
				FileID:         id,
				Directory:      l.Directory,
				Filename:       l.Filename,
				Size:           l.Size,
				DuplicateCount: len(locs),
			})
		}
	}
	return out, nil
}

func (f *FakeFinder) GetAllLocations(_ context.Context, fileID int64) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Location(nil), f.locations[fileID]...), nil
}

func (f *FakeFinder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Closed reports how many times Close was called.
func (f *FakeFinder) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeDeleter records enqueued deletions. Paths listed in Fail are rejected.
type FakeDeleter struct {
	mu       sync.Mutex
	Fail     map[string]error
	enqueued []string
	closed   int
}

var _ sweep.DeletionService = (*FakeDeleter)(nil)

func NewFakeDeleter() *FakeDeleter {
	return &FakeDeleter{Fail: make(map[string]error)}
}

func (d *FakeDeleter) EnqueueDelete(_ context.Context, localPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.Fail[localPath]; ok {
		if err == nil {
			err = fmt.Errorf("HTTP 500 enqueueing delete of %s", localPath)
		}
		return err
	}
	d.enqueued = append(d.enqueued, localPath)
	return nil
}

func (d *FakeDeleter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Enqueued returns the accepted paths in order.
func (d *FakeDeleter) Enqueued() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.enqueued...)
}

func (d *FakeDeleter) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
