package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	appconfig "github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/config"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/errdefs"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	s3Config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3 stores blobs in an S3-compatible object store (MinIO in the CKN
// deployments, hence path-style addressing).
type S3 struct {
	client *s3.Client
	bucket *string
}

func NewS3(ctx context.Context, cfg *appconfig.Config) (*S3, error) {
	s3Cfg, err := s3Config.LoadDefaultConfig(ctx,
		s3Config.WithRegion(cfg.S3Region),
		s3Config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKeyID,
				cfg.S3SecretAccessKey,
				"",
			),
		),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(s3Cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	s := &S3{client: client, bucket: aws.String(cfg.S3Bucket)}
	if err := s.createBucket(ctx, cfg.S3Bucket); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3) createBucket(ctx context.Context, name string) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var respErr *http.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 409 {
			if logger, ok := logging.GetFromContext(ctx); ok {
				logger.Info(ctx, "Bucket already exists", zap.String("bucket", name))
			}
			return nil
		}
	}
	return err
}

func (s *S3) Save(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        s.bucket,
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("blob %s: %w", key, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3) PresignDownload(ctx context.Context, key string) (string, error) {
	presigner := s3.NewPresignClient(s.client)

	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	},
		s3.WithPresignExpires(5*time.Minute),
	)
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
