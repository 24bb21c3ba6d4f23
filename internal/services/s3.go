package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"waos/internal/config"
	"waos/internal/utils/logger"
)

var _ Storage = (*S3Service)(nil)

// S3Service stores objects in AWS S3 or any S3 compatible endpoint (R2, MinIO).
type S3Service struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	baseURL string
	acl     types.ObjectCannedACL
	logger  *logger.Logger
}

// NewS3Service builds the client and checks that the bucket is reachable with the given keys.
// R2 buckets get public-read objects, everything else stays private.
func NewS3Service(ctx context.Context, provider string, cfg config.S3Config) (*S3Service, error) {
	log := logger.New("s3")
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, log.Error("S3 storage selected", errors.New("access key and secret key are required"))
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, log.Error("Bucket %s is not reachable", err, cfg.BucketName)
	}

	svc := &S3Service{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.BucketName,
		baseURL: bucketURL(cfg),
		acl:     types.ObjectCannedACLPrivate,
		logger:  log,
	}
	if provider == "r2" {
		svc.acl = types.ObjectCannedACLPublicRead
	}
	log.Success("Using bucket %s", cfg.BucketName)
	return svc, nil
}

// bucketURL is path style for custom endpoints and virtual-hosted style for AWS.
func bucketURL(cfg config.S3Config) string {
	if cfg.Endpoint != "" {
		u, err := url.JoinPath(cfg.Endpoint, cfg.BucketName)
		if err == nil {
			return u
		}
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
}

// Put uploads data under key and returns the object's permanent URL.
func (s *S3Service) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           s.acl,
	})
	if err != nil {
		return "", s.logger.Error("Put %s", err, key)
	}
	s.logger.Debug("Stored %s (%d bytes)", key, len(data))
	return s.baseURL + "/" + key, nil
}

func (s *S3Service) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return s.logger.Error("Delete %s", err, key)
	}
	return nil
}

// GetSignedURL presigns a GET for key valid for ttl.
func (s *S3Service) GetSignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", s.logger.Error("Presign %s", err, key)
	}
	return req.URL, nil
}
