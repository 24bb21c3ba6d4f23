package handlers

import (
	"context"

	"waos/internal/utils"
)

// ResetLimiter throttles password reset requests per e-mail.
type ResetLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// AvatarStore resizes and stores profile pictures, returning the public URL.
type AvatarStore interface {
	Save(ctx context.Context, userID string, data []byte) (string, error)
}

// ProfileFetcher resolves a Google access token to the user's profile.
type ProfileFetcher interface {
	GetUserDataFromGoogle(ctx context.Context, accessToken string) (*utils.GoogleProfile, []byte, error)
}

// Downloader fetches remote files such as provider profile pictures.
type Downloader interface {
	DownloadFile(ctx context.Context, url string) ([]byte, string, error)
}
