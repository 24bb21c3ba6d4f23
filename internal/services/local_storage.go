package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"waos/internal/utils/logger"
)

var _ Storage = (*LocalStorage)(nil)

// LocalStorage writes objects under a base directory and serves them from baseURL.
type LocalStorage struct {
	root    string
	baseURL string
	logger  *logger.Logger
}

func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", abs, err)
	}
	return &LocalStorage{root: abs, baseURL: strings.TrimRight(baseURL, "/"), logger: logger.New("local_storage")}, nil
}

// Root is the directory served under the public uploads path.
func (s *LocalStorage) Root() string { return s.root }

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", errors.New("empty storage key")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", s.logger.Error("Failed to write %s", err, key)
	}
	s.logger.Debug("Stored %s (%d bytes, %s)", key, len(data), contentType)
	return s.publicURL(key), nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// GetSignedURL returns the public URL. Local files are not access controlled.
func (s *LocalStorage) GetSignedURL(ctx context.Context, key string, duration time.Duration) (string, error) {
	return s.publicURL(key), nil
}

func (s *LocalStorage) publicURL(key string) string {
	parts := strings.Split(strings.TrimLeft(filepath.ToSlash(key), "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
