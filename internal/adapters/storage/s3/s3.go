// Package s3 implements ports.ObjectStore backed by Amazon S3 or any
// S3-compatible store (via endpoint override).
package s3

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
)

type Config struct {
	Region string
	// AccessKey/SecretKey select static credentials; leave empty to use the
	// SDK's ambient credential chain.
	AccessKey string
	SecretKey string
	// Endpoint overrides the S3 endpoint (MinIO and friends). Path-style
	// addressing is enabled when set.
	Endpoint string
}

type Store struct {
	client   *awss3.Client
	uploader *manager.Uploader
}

func New(cfg Config) *Store {
	opts := awss3.Options{Region: cfg.Region}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	client := awss3.New(opts)
	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (s *Store) Provider() string { return "s3" }

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapGetErr(err, bucket, key)
	}
	return out.Body, nil
}

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) error {
	put := &awss3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		put.ContentType = aws.String(in.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, put); err != nil {
		return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "s3.put", "upload failed").
			WithField("bucket", in.Bucket).
			WithField("key", in.Key)
	}
	return nil
}

func mapGetErr(err error, bucket, key string) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return errors.WrapWithCode(err, errors.CodeObjectNotFound, "s3.get", "object not found").
			WithField("bucket", bucket).
			WithField("key", key)
	}
	return errors.WrapWithCode(err, errors.CodeStorageUnavailable, "s3.get", "download failed").
		WithField("bucket", bucket).
		WithField("key", key)
}
