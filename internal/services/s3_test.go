package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waos/internal/config"
)

func TestBucketURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{"aws", config.S3Config{BucketName: "media", Region: "eu-west-1"}, "https://media.s3.eu-west-1.amazonaws.com"},
		{"custom endpoint", config.S3Config{BucketName: "media", Endpoint: "http://minio:9000"}, "http://minio:9000/media"},
		{"endpoint with trailing slash", config.S3Config{BucketName: "media", Endpoint: "http://minio:9000/"}, "http://minio:9000/media"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bucketURL(tt.cfg))
		})
	}
}

func TestNewS3ServiceRequiresKeys(t *testing.T) {
	_, err := NewS3Service(context.Background(), "s3", config.S3Config{BucketName: "media"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access key and secret key are required")
}
