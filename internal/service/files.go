package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
)

// FileStore is the document storage behind uploads and rendered PDFs.
type FileStore interface {
	SaveUpload(ctx context.Context, dir, originalName string, r io.Reader, allowed map[string]bool) (*storage.Stored, error)
	WriteNew(ctx context.Context, rel string, data []byte) error
	ReadFile(ctx context.Context, rel string) ([]byte, error)
	Delete(ctx context.Context, rel string) error
}

// Upload is a file received from a multipart form.
type Upload struct {
	Name   string
	Reader io.Reader
}

// File is stored content handed back for download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func uploadErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return apperror.Validation("file too large", map[string][]string{"file": {"File exceeds the upload limit"}})
	case errors.Is(err, storage.ErrUnsupportedType):
		return apperror.Validation("unsupported file type", map[string][]string{"file": {"Only PDF and image files are accepted"}})
	}
	return fmt.Errorf("%s: %w", op, err)
}
