// Package localfs implements ports.ObjectStore on the local filesystem,
// laying objects out as {root}/{bucket}/{key}. Used for development and
// tests.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Provider() string { return "localfs" }

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	p := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.CodeObjectNotFound, "localfs.get", "object not found").
				WithField("bucket", bucket).
				WithField("key", key)
		}
		return nil, errors.WrapWithCode(err, errors.CodeStorageUnavailable, "localfs.get", "read failed").
			WithField("bucket", bucket).
			WithField("key", key)
	}
	return f, nil
}

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) error {
	dst := filepath.Join(s.root, in.Bucket, filepath.FromSlash(in.Key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "localfs.put", "mkdir failed")
	}

	f, err := os.Create(dst)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "localfs.put", "create failed")
	}
	defer f.Close()

	if _, err := io.Copy(f, in.Reader); err != nil {
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "localfs.put", "write failed")
	}
	return nil
}
