package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"collegemgmt/internal/shared"
)

// Store abstracts where uploaded media lives. Bulletin attachments (study
// materials, timetable images) go through this; the rest of the system only
// ever holds the opaque reference it returns.
type Store interface {
	// Save persists an upload and returns its reference (the name served
	// under the media route).
	Save(originalName string, r io.Reader) (string, error)
	// Open returns a reader for a stored file.
	Open(ref string) (io.ReadCloser, error)
	// Remove deletes a stored file. Removing a missing file is not an error.
	Remove(ref string) error
}

// allowedTypes are the media types the portals accept: documents and images.
var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// diskStore keeps uploads in a flat directory. References are random UUIDs
// with the original extension, so an uploaded name can never traverse paths
// or collide with another upload.
type diskStore struct {
	dir      string
	maxBytes int64
}

// NewDiskStore creates the media directory if needed and returns a Store
// over it.
func NewDiskStore(dir string, maxUploadMB int) (Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("media directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &diskStore{dir: dir, maxBytes: int64(maxUploadMB) * 1024 * 1024}, nil
}

func (s *diskStore) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	ref := uuid.NewString() + ext
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", shared.WrapPersistence("media create", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", shared.WrapPersistence("media write", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return "", shared.NewValidationError("file",
			fmt.Sprintf("file exceeds the %d MB upload limit", s.maxBytes/(1024*1024)))
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil || !allowedTypes[detected.String()] {
		os.Remove(path)
		return "", shared.NewValidationError("file", "unsupported file type")
	}

	return ref, nil
}

func (s *diskStore) Open(ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shared.NewNotFoundError("file", ref)
		}
		return nil, shared.WrapPersistence("media open", err)
	}
	return f, nil
}

func (s *diskStore) Remove(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return shared.WrapPersistence("media remove", err)
	}
	return nil
}

// resolve rejects references that escape the media directory.
func (s *diskStore) resolve(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", shared.NewValidationError("file", "invalid file reference")
	}
	return filepath.Join(s.dir, ref), nil
}
