package services

import (
	"context"
	"fmt"

	"waos/internal/config"
	"waos/internal/models"
)

// Storage keeps uploaded objects. Keys are provider independent paths such as
// "avatars/<user>/<uuid>-256.jpg".
type Storage interface {
	models.FileURLGenerator
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewStorage builds the provider named in cfg.Provider.
func NewStorage(ctx context.Context, cfg config.StorageConfig, publicURL string) (Storage, error) {
	switch cfg.Provider {
	case "s3", "r2":
		return NewS3Service(ctx, cfg.Provider, cfg.S3)
	case "local", "":
		return NewLocalStorage(cfg.BasePath, publicURL+"/uploads")
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}
