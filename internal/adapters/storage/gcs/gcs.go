// Package gcs implements ports.ObjectStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
)

type Store struct {
	client *storage.Client
}

// New creates a GCS-backed store. credentialsFile may be empty, in which
// case application default credentials are used.
func New(ctx context.Context, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeStorageUnavailable, "gcs.new", "failed to create client")
	}
	return &Store{client: client}, nil
}

func (s *Store) Provider() string { return "gcs" }

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, errors.WrapWithCode(err, errors.CodeObjectNotFound, "gcs.get", "object not found").
				WithField("bucket", bucket).
				WithField("key", key)
		}
		return nil, errors.WrapWithCode(err, errors.CodeStorageUnavailable, "gcs.get", "download failed").
			WithField("bucket", bucket).
			WithField("key", key)
	}
	return r, nil
}

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) error {
	wc := s.client.Bucket(in.Bucket).Object(in.Key).NewWriter(ctx)
	wc.ContentType = in.ContentType

	if _, err := io.Copy(wc, in.Reader); err != nil {
		_ = wc.Close()
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "gcs.put", "upload stream failed").
			WithField("bucket", in.Bucket).
			WithField("key", in.Key)
	}
	if err := wc.Close(); err != nil {
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "gcs.put", "upload failed").
			WithField("bucket", in.Bucket).
			WithField("key", in.Key)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
