package encryption

import (
	"bytes"
	"fmt"
	"io"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// testMagic marks ledgers "encrypted" by TestEncryptor.
var testMagic = []byte("SSDTEST\x00")

// TestEncryptor frames data with a fixed prefix instead of encrypting it. It
// lets tests exercise the encrypted store path without key files.
type TestEncryptor struct {
	passphrase string
}

var _ sweep.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(testMagic), r)); err != nil {
		return fmt.Errorf("framing data: %w", err)
	}
	return nil
}

// Unlock accepts any passphrase until Setup records one.
func (e *TestEncryptor) Unlock(passphrase string) (sweep.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext strips the TestEncryptor prefix.
type TestDecryptionContext struct{}

var _ sweep.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	magic := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading frame: %w", err)
	}
	if !bytes.Equal(magic, testMagic) {
		return fmt.Errorf("data was not framed by TestEncryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("unframing data: %w", err)
	}
	return nil
}
