package storage

import (
	"context"
	"fmt"

	"clipforge/internal/adapters/storage/gcs"
	"clipforge/internal/adapters/storage/localfs"
	"clipforge/internal/adapters/storage/s3"
	"clipforge/internal/pkg/env"
)

// NewStore builds the object store selected by STORAGE_PROVIDER.
func NewStore(ctx context.Context) (Store, error) {
	provider := env.Get("STORAGE_PROVIDER", "localfs")

	switch provider {
	case "localfs":
		root := env.Must("STORAGE_LOCAL_ROOT")
		return localfs.New(root), nil

	case "s3":
		return s3.New(s3.Config{
			Region:    env.Must("S3_REGION"),
			AccessKey: env.Get("S3_ACCESS_KEY_ID", ""),
			SecretKey: env.Get("S3_SECRET_ACCESS_KEY", ""),
			Endpoint:  env.Get("S3_ENDPOINT", ""),
		}), nil

	case "gcs":
		return gcs.New(ctx, env.Get("GCS_CREDENTIALS_FILE", ""))

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}
}
