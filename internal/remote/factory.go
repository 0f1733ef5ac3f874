package remote

import (
	"context"
	"fmt"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// NewStoreFromConfig creates the store named by the ledger config type.
// Encryption is layered on by the caller.
func NewStoreFromConfig(ctx context.Context, cfg config.LedgerConfig) (sweep.RemoteStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem ledger requires dir to be set")
		}
		return NewFileSystemStore(cfg.Dir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 ledger requires s3_bucket to be set")
		}
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3KeyID,
			SecretAccessKey: cfg.S3Secret,
		})
	default:
		return nil, fmt.Errorf("unknown ledger type: %s", cfg.Type)
	}
}
