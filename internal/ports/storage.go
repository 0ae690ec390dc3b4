package ports

import (
	"context"
	"io"
)

// ObjectRef names an object by bucket and key.
type ObjectRef struct {
	Bucket string
	Key    string
}

type PutObjectInput struct {
	Bucket      string
	Key         string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// ObjectStore: implementations (s3, gcs, localfs).
// Adapters translate their native failures into errors.CodeObjectNotFound
// for missing buckets/keys and errors.CodeStorageUnavailable for everything
// else, so callers never depend on provider-specific error types.
type ObjectStore interface {
	Provider() string

	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, in PutObjectInput) error
}
