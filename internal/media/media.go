// Package media handles post image attachments: validating the upload,
// storing the original, and deriving a thumbnail for feed pages.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/isavelev/yatube/pkg/storage"
)

var ErrInvalidImage = errors.New("file is not a valid image")

const (
	thumbWidth  = 320
	thumbHeight = 240
)

// Processor stores post images and their thumbnails.
type Processor struct {
	store storage.Storage
}

// NewProcessor creates a media processor on top of a storage backend.
func NewProcessor(store storage.Storage) *Processor {
	return &Processor{store: store}
}

// SaveImage validates and stores an uploaded image, returning the storage
// keys of the original and the generated thumbnail.
func (p *Processor) SaveImage(ctx context.Context, r io.Reader, filename string) (imageKey, thumbKey string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to read upload: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", "", ErrInvalidImage
	}

	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		format = imaging.JPEG
	}
	ext := formatExt(format)
	contentType := formatContentType(format)

	id := uuid.New().String()
	imageKey = "posts/" + id + ext
	thumbKey = "posts/thumbs/" + id + ext

	if err := p.store.Write(ctx, imageKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", "", fmt.Errorf("failed to store image: %w", err)
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return "", "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := p.store.Write(ctx, thumbKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentType); err != nil {
		return "", "", fmt.Errorf("failed to store thumbnail: %w", err)
	}

	return imageKey, thumbKey, nil
}

func formatExt(f imaging.Format) string {
	ext := "." + strings.ToLower(f.String())
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext
}

func formatContentType(f imaging.Format) string {
	switch f {
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.BMP:
		return "image/bmp"
	case imaging.TIFF:
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}
