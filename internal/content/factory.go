package content

import (
	"context"
	"fmt"

	"github.com/wsusd/wsusd/internal/config"
)

// NewStoreFromConfig builds the Store backend selected by cfg.Kind,
// translating the on-disk config shape into each backend's constructor
// arguments (SPEC_FULL.md §4.15).
func NewStoreFromConfig(ctx context.Context, cfg config.ContentStoreConfig) (Store, error) {
	switch cfg.Kind {
	case "", "local":
		if cfg.Local.BasePath == "" {
			return nil, fmt.Errorf("content_store.local.base_path is required")
		}
		return NewLocalStore(cfg.Local.BasePath), nil

	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
			CacheDir:        cfg.S3.CacheDir,
		})

	case "azure":
		return NewAzureStore(AzureConfig{
			AccountURL:    cfg.Azure.AccountURL,
			Container:     cfg.Azure.Container,
			Prefix:        cfg.Azure.Prefix,
			SharedKeyName: cfg.Azure.SharedKeyName,
			SharedKey:     cfg.Azure.SharedKey,
			CacheDir:      cfg.Azure.CacheDir,
		})

	case "gcs":
		return NewGCSStore(ctx, GCSConfig{
			Bucket:   cfg.GCS.Bucket,
			Prefix:   cfg.GCS.Prefix,
			CacheDir: cfg.GCS.CacheDir,
		})

	case "b2":
		return NewB2Store(ctx, B2Config{
			AccountID: cfg.B2.AccountID,
			AppKey:    cfg.B2.AppKey,
			Bucket:    cfg.B2.Bucket,
			Prefix:    cfg.B2.Prefix,
			CacheDir:  cfg.B2.CacheDir,
		})

	default:
		return nil, fmt.Errorf("unknown content_store.kind %q", cfg.Kind)
	}
}
