package encryption

import (
	"fmt"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// NewEncryptorFromConfig returns the configured Encryptor, or nil when the
// ledger is stored in the clear.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (sweep.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
