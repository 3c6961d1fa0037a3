package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"

	"github.com/opencourse/lms-api/pkg/storage"
)

// Upload errors.
var (
	ErrUploadTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrFileCleanup marks a partial failure: the database write succeeded
	// but the stored file could not be removed, leaving an orphan for
	// operators to reconcile.
	ErrFileCleanup = errors.New("file cleanup failed")
)

// FileStore abstracts the blob storage used for resources and submissions.
type FileStore interface {
	Upload(ctx context.Context, name string, reader io.Reader) (storage.StoredFile, error)
	Delete(ctx context.Context, publicID string) error
}

var allowedUploadTypes = []string{
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"text/plain",
	"image/png",
	"image/jpeg",
}

// validateUpload checks size and sniffed MIME type and returns the detected type.
func validateUpload(file *multipart.FileHeader, maxBytes int64) (string, error) {
	if maxBytes > 0 && file.Size > maxBytes {
		return "", ErrUploadTooLarge
	}

	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", fmt.Errorf("failed to detect file type: %w", err)
	}

	for _, allowed := range allowedUploadTypes {
		if mime.Is(allowed) {
			return mime.String(), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, mime.String())
}
