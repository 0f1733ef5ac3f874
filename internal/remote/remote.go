// Package remote holds the stores the ledger file is kept in between sweeps.
package remote

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned by Get when the store has no object by that name.
	ErrNotFound = errors.New("not found in remote store")

	// ErrDigestMismatch is returned when downloaded bytes do not match the
	// digest recorded at upload.
	ErrDigestMismatch = errors.New("remote copy does not match its recorded digest")
)

// sizeReader fails at EOF when the underlying reader produced a different
// number of bytes than promised, so a short upload never replaces anything.
type sizeReader struct {
	r    io.Reader
	want int64
	got  int64
}

func (s *sizeReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.got += int64(n)
	if err == io.EOF && s.got != s.want {
		return n, fmt.Errorf("size mismatch: expected %d bytes, got %d", s.want, s.got)
	}
	if s.got > s.want {
		return n, fmt.Errorf("size mismatch: expected %d bytes, got more", s.want)
	}
	return n, err
}
