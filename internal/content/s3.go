package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// s3Backend is a remoteBackend over AWS S3 (or an S3-compatible endpoint).
// Grounded on the teacher's declared-but-stubbed
// internal/backup/providers/s3.go — this is that dependency genuinely
// wired (see DESIGN.md).
type s3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config configures the S3-backed content store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	CacheDir        string
}

// NewS3Store builds a Store backed by S3 with local-disk caching.
func NewS3Store(ctx context.Context, cfg S3Config) (Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	backend := &s3Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	return newCachingStore(backend, cfg.CacheDir), nil
}

func (b *s3Backend) key(dir, name string) string {
	if b.prefix == "" {
		return dir + "/" + name
	}
	return b.prefix + "/" + dir + "/" + name
}

func (b *s3Backend) exists(ctx context.Context, dir, name string) bool {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(dir, name)),
	})
	if err == nil {
		return true
	}
	var notFound *smithyhttp.ResponseError
	if errors.As(err, &notFound) && notFound.HTTPStatusCode() == 404 {
		return false
	}
	log.Warn("s3 head object failed", "bucket", b.bucket, "key", b.key(dir, name), "error", err)
	return false
}

func (b *s3Backend) fetch(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(dir, name)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
