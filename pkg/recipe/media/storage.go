// Package media stores uploaded recipe images on local disk and
// checks that payloads actually decode as images.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"sync"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/google/uuid"
)

// ErrNotAnImage is returned when a payload does not decode with any
// registered image format.
var ErrNotAnImage = errors.New("not a valid image")

// DetectImage verifies that data is a decodable image and returns the
// canonical file extension for its format.
func DetectImage(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotAnImage
	}
	if format == "jpeg" {
		return ".jpg", nil
	}
	return "." + format, nil
}

// Storage manages image files under a single directory.
// Thread-safe for concurrent requests.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a Storage rooted at {basePath}/{subdir},
// creating the directory if needed.
func NewStorage(basePath, subdir string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if subdir == "" {
		return nil, fmt.Errorf("subdirectory cannot be empty")
	}

	storagePath := filepath.Join(basePath, subdir)
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", subdir, err)
	}

	return &Storage{basePath: storagePath}, nil
}

// SaveImage writes image data under a random filename with the given
// extension and returns the filename.
func (s *Storage) SaveImage(data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filename := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.basePath, filename), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return filename, nil
}

// Exists checks whether a stored file is present.
func (s *Storage) Exists(filename string) bool {
	if filename == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (s *Storage) Delete(filename string) error {
	if filename == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(filename)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}

	return nil
}

// Path returns the full filesystem path for a stored filename.
// The filename is reduced to its base so request data can never
// escape the storage directory.
func (s *Storage) Path(filename string) string {
	return filepath.Join(s.basePath, filepath.Base(filename))
}

// Root returns the directory files are stored in.
func (s *Storage) Root() string {
	return s.basePath
}

// URLPath returns the public URL path for a stored filename.
func URLPath(prefix, filename string) string {
	return path.Join(prefix, filename)
}
