package ledger

import (
	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// OpenFromConfig opens the ledger named in cfg from store.
func OpenFromConfig(cfg config.LedgerConfig, store sweep.RemoteStore, opts ...Option) (*SQLiteLedger, error) {
	return Open(store, cfg.StagingDir, filename(cfg), opts...)
}

// CreateFromConfig starts a new ledger for cfg, discarding any staging copy.
func CreateFromConfig(cfg config.LedgerConfig, store sweep.RemoteStore, opts ...Option) (*SQLiteLedger, error) {
	return Create(store, cfg.StagingDir, filename(cfg), opts...)
}

// OpenStagedFromConfig opens the staging copy for cfg without fetching.
func OpenStagedFromConfig(cfg config.LedgerConfig, store sweep.RemoteStore, opts ...Option) (*SQLiteLedger, error) {
	return OpenStaged(store, cfg.StagingDir, filename(cfg), opts...)
}

func filename(cfg config.LedgerConfig) string {
	if cfg.Filename == "" {
		return DefaultFilename
	}
	return cfg.Filename
}
