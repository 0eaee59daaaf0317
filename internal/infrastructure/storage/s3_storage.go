package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/dilly/tablebot/internal/infrastructure/config"
)

// S3Publisher uploads artifacts to S3-compatible storage (AWS S3, MinIO, etc.)
// and publishes them through presigned GET URLs
type S3Publisher struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	prefix            string
	presignExpiration time.Duration
	now               func() time.Time
	logger            *zap.Logger
}

// S3PublisherOption is a functional option for configuring S3Publisher
type S3PublisherOption func(*S3Publisher)

// WithLogger sets a custom logger for S3Publisher
func WithLogger(logger *zap.Logger) S3PublisherOption {
	return func(s *S3Publisher) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for key partitioning
func WithClock(now func() time.Time) S3PublisherOption {
	return func(s *S3Publisher) {
		s.now = now
	}
}

// NewS3Publisher creates a new S3Publisher from configuration.
// Without static keys the default AWS credential chain is used.
func NewS3Publisher(ctx context.Context, cfg *infraconfig.S3Config, opts ...S3PublisherOption) (*S3Publisher, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key and secret key must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	publisher := &S3Publisher{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            strings.Trim(cfg.Prefix, "/"),
		presignExpiration: cfg.PresignExpiry,
		now:               time.Now,
		logger:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(publisher)
	}

	if publisher.presignExpiration == 0 {
		publisher.presignExpiration = 15 * time.Minute
	}

	return publisher, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3Publisher) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Lost a creation race with another instance
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Storage bucket created successfully", zap.String("bucket", s.bucket))
	return nil
}

// Publish uploads the artifact and returns a presigned download URL
func (s *S3Publisher) Publish(ctx context.Context, artifactPath string) (*Published, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidArtifact, artifactPath)
	}

	key := s.KeyFor(artifactPath)
	if err := s.Upload(ctx, key, data, contentTypeFor(artifactPath)); err != nil {
		return nil, err
	}

	downloadURL, err := s.DownloadURL(ctx, key)
	if err != nil {
		return nil, err
	}

	s.logger.Info("artifact published",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(data)))

	return &Published{
		URL:  downloadURL,
		Key:  key,
		Size: int64(len(data)),
	}, nil
}

// KeyFor builds the object key: {prefix}/{year}/{month}/{file name}
func (s *S3Publisher) KeyFor(artifactPath string) string {
	now := s.now()
	parts := []string{
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		filepath.Base(artifactPath),
	}
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Upload uploads data directly to storage
func (s *S3Publisher) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

// DownloadURL generates a presigned GET URL valid for the configured expiration
func (s *S3Publisher) DownloadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}

	presignReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	return presignReq.URL, nil
}

// Bucket returns the bucket name
func (s *S3Publisher) Bucket() string {
	return s.bucket
}

// Ensure S3Publisher implements Publisher
var _ Publisher = (*S3Publisher)(nil)
