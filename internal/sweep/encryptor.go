package sweep

import "io"

// Encryptor protects the remote ledger copy. Encrypting needs only the public
// key; decrypting requires Unlock with the passphrase.
type Encryptor interface {
	// Setup generates a key pair and stores the private key encrypted with
	// passphrase. Called by `ssd ledger keygen`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext for the
	// rest of the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
