package remote

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// ErrLocked is returned by EncryptedStore.Get when no decryption context was supplied.
var ErrLocked = errors.New("encrypted store is locked")

// EncryptedStore encrypts objects before they reach the wrapped store and
// decrypts them on the way back.
type EncryptedStore struct {
	inner sweep.RemoteStore
	enc   sweep.Encryptor
	dec   sweep.DecryptionContext
}

// NewEncryptedStore wraps inner. dec may be nil for a store that is only written.
func NewEncryptedStore(inner sweep.RemoteStore, enc sweep.Encryptor, dec sweep.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc, dec: dec}
}

func (s *EncryptedStore) Exists(name string) (bool, error) {
	return s.inner.Exists(name)
}

func (s *EncryptedStore) Get(name string, w io.Writer) error {
	if s.dec == nil {
		return ErrLocked
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.inner.Get(name, pw))
	}()
	if err := s.dec.Decrypt(pr, w); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("decrypting %s: %w", s.inner.Describe(name), err)
	}
	return nil
}

// Put encrypts into a temp file first, since the ciphertext size is only
// known once encryption finishes.
func (s *EncryptedStore) Put(name string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp("", "ssd-ledger-*.age")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := s.enc.Encrypt(&sizeReader{r: r, want: size}, tmp); err != nil {
		return fmt.Errorf("encrypting %s: %w", name, err)
	}

	ciphertextSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sizing ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding ciphertext: %w", err)
	}
	return s.inner.Put(name, tmp, ciphertextSize)
}

func (s *EncryptedStore) Describe(name string) string {
	return s.inner.Describe(name) + " (encrypted)"
}

var _ sweep.RemoteStore = (*EncryptedStore)(nil)
