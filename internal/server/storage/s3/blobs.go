// Package s3 хранит байты загруженных файлов в S3-совместимом хранилище.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/gophsync/internal/server/storage"
)

// objectAPI - используемое подмножество *s3.Client
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config configures the S3 blob store.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // для S3-совместимых сервисов (MinIO и т.п.)
	// AccessKeyID and SecretAccessKey are optional; the default AWS
	// credential chain is used when they are empty.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
	MaxRetries      uint64
}

// BlobStore implements storage.BlobStore on S3.
type BlobStore struct {
	client  objectAPI
	logger  *slog.Logger
	bucket  string
	prefix  string
	retries uint64
}

var _ storage.BlobStore = (*BlobStore)(nil)

// New creates the blob store and its S3 client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return newBlobStore(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger), nil
}

func newBlobStore(client objectAPI, cfg Config, logger *slog.Logger) *BlobStore {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &BlobStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		retries: cfg.MaxRetries,
		logger:  logger,
	}
}

func (b *BlobStore) backoff() retry.Backoff {
	return retry.WithMaxRetries(b.retries, retry.WithJitterPercent(10, retry.NewExponential(100*time.Millisecond)))
}

// do повторяет операцию, пока ошибка не станет постоянной
func (b *BlobStore) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, b.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || isNotFound(err) || ctx.Err() != nil {
			return err
		}
		b.logger.Warn("S3 operation failed, retrying", "op", op, "key", key, "error", err)
		return retry.RetryableError(err)
	})
}

// PutBlob uploads bytes under key
func (b *BlobStore) PutBlob(ctx context.Context, key string, data []byte) error {
	fullKey := b.prefix + key

	err := b.do(ctx, "put", fullKey, func(ctx context.Context) error {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(fullKey),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("S3 put object failed: %w", err)
	}
	return nil
}

// GetBlob downloads bytes stored under key
func (b *BlobStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	fullKey := b.prefix + key

	var data []byte
	err := b.do(ctx, "get", fullKey, func(ctx context.Context) error {
		resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(fullKey),
		})
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("S3 get object failed: %w", err)
	}
	return data, nil
}

// DeleteBlob removes the object stored under key
func (b *BlobStore) DeleteBlob(ctx context.Context, key string) error {
	fullKey := b.prefix + key

	err := b.do(ctx, "delete", fullKey, func(ctx context.Context) error {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(fullKey),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("S3 delete object failed: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
