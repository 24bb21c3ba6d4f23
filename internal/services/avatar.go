package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AvatarService stores the resized variants of a profile picture.
type AvatarService struct {
	images  *ImageService
	storage Storage
}

func NewAvatarService(images *ImageService, storage Storage) *AvatarService {
	return &AvatarService{images: images, storage: storage}
}

// Save resizes data and uploads every variant under avatars/<userID>/. It returns the URL of
// the largest variant.
func (s *AvatarService) Save(ctx context.Context, userID string, data []byte) (string, error) {
	variants, err := s.images.Avatars(data)
	if err != nil {
		return "", err
	}

	prefix := uuid.NewString()
	var largest string
	for _, size := range s.images.Sizes() {
		key := fmt.Sprintf("avatars/%s/%s-%d.jpg", userID, prefix, size)
		url, err := s.storage.Put(ctx, key, variants[size], "image/jpeg")
		if err != nil {
			return "", fmt.Errorf("store %dpx avatar: %w", size, err)
		}
		largest = url
	}
	return largest, nil
}
