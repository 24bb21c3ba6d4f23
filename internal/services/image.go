package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"sort"

	"github.com/disintegration/imaging"

	"waos/internal/config"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ImageService turns an uploaded picture into square JPEG avatars.
type ImageService struct {
	sizes     []int
	quality   int
	maxSize   int64
	maxPixels int64
}

func NewImageService(cfg config.UploadsConfig) *ImageService {
	sizes := append([]int(nil), cfg.AvatarSizes...)
	sort.Ints(sizes)
	return &ImageService{sizes: sizes, quality: cfg.AvatarQuality, maxSize: cfg.MaxAvatarBytes, maxPixels: cfg.MaxAvatarPixels}
}

// Sizes returns the configured edge lengths, smallest first.
func (s *ImageService) Sizes() []int { return s.sizes }

// Avatars decodes data and returns one JPEG per configured size, cropped to the centre.
func (s *ImageService) Avatars(data []byte) (map[int][]byte, error) {
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, len(data), s.maxSize)
	}
	if ct := http.DetectContentType(data); !acceptedImageTypes[ct] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
	}

	// The header alone tells how much memory a full decode would take.
	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if pixels := int64(header.Width) * int64(header.Height); s.maxPixels > 0 && pixels > s.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, header.Width, header.Height, s.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	out := make(map[int][]byte, len(s.sizes))
	for _, size := range s.sizes {
		thumb := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
			return nil, fmt.Errorf("encode %dpx avatar: %w", size, err)
		}
		out[size] = buf.Bytes()
	}
	return out, nil
}
