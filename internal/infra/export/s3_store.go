package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/pkg/logger"
)

// S3Store uploads export artifacts to an S3-compatible bucket and returns
// presigned download URLs. A custom endpoint with path-style addressing
// covers MinIO and other self-hosted stores.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	logger  *logger.Logger
}

// NewS3Store builds the client from EXPORT_* settings. Credential
// resolution order: assume-role when a role ARN is set, static keys when
// an access key is set, otherwise the SDK default chain.
func NewS3Store(ctx context.Context, cfg config.ExportConfig, log *logger.Logger) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("export S3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}

	switch {
	case cfg.S3RoleARN != "":
		baseCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config for assume role: %w", err)
		}
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(baseCfg), cfg.S3RoleARN)
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(provider)))

	case cfg.S3AccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		ttl:     cfg.PresignTTL,
		logger:  log.With("component", "s3_store"),
	}, nil
}

// Put uploads the artifact and presigns a GET for it. A presign failure
// is downgraded to a missing URL; the upload already succeeded and the
// object stays retrievable by key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	if s.ttl <= 0 {
		return "", nil
	}

	presigned, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.logger.Warn("presign failed, artifact stored without URL", "object_key", key, "error", err)
		return "", nil
	}
	return presigned.URL, nil
}
