package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

var (
	// ErrExists is returned when a write would replace an existing file.
	ErrExists = errors.New("storage: file already exists")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("storage: file exceeds upload limit")
	// ErrUnsupportedType is returned when the sniffed type is not allowed.
	ErrUnsupportedType = errors.New("storage: unsupported file type")
)

// Upload MIME types accepted for documents and photos.
var DocumentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
}

// Stored describes a saved upload.
type Stored struct {
	Path        string
	Size        int64
	ContentType string
}

// DocumentStorage keeps uploads and rendered PDFs on the local filesystem.
// Paths handed out are relative to the root.
type DocumentStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewDocumentStorage creates the root directory when missing.
func NewDocumentStorage(rootPath string, maxUploadMB int64) (*DocumentStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory %s: %w", rootPath, err)
	}
	return &DocumentStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// SaveUpload sniffs the content type from the magic bytes, rejects types not
// in allowed and stores the file under dir with a unique name.
func (s *DocumentStorage) SaveUpload(ctx context.Context, dir, originalName string, r io.Reader, allowed map[string]bool) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(261)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("storage: read header: %w", err)
	}
	contentType := DetectContentType(head)
	if allowed != nil && !allowed[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	safeName := sanitizeFilename(originalName)
	fileName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), safeName)
	rel := filepath.Join(dir, fileName)

	size, err := s.write(rel, br, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	return &Stored{Path: filepath.ToSlash(rel), Size: size, ContentType: contentType}, nil
}

// WriteNew stores data at rel and refuses to replace an existing file.
func (s *DocumentStorage) WriteNew(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, rel)
		}
		return fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(target)
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close file: %w", err)
	}
	return nil
}

// ReadFile returns the content of a stored file.
func (s *DocumentStorage) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file; a missing file is not an error.
func (s *DocumentStorage) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

func (s *DocumentStorage) write(rel string, r io.Reader, limit int64) (int64, error) {
	target := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("storage: create directory: %w", err)
	}
	tempPath := target + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, &io.LimitedReader{R: r, N: limit + 1})
	if err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("storage: write file: %w", err)
	}
	if written > limit {
		_ = os.Remove(tempPath)
		return 0, ErrTooLarge
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		return 0, fmt.Errorf("storage: rename file: %w", err)
	}
	return written, nil
}

// abs resolves rel inside the root; traversal segments are dropped.
func (s *DocumentStorage) abs(rel string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(rel))
	return filepath.Join(s.rootPath, clean)
}

// DetectContentType returns the MIME type of header by magic bytes.
func DetectContentType(header []byte) string {
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
