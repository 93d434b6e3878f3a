// Package storage persists generated output images onto the local
// filesystem under a single flat directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// outputNamePattern restricts output filenames to the `<taskId>.<ext>` shape
// with the three supported extensions. Anything else never reaches the disk.
var outputNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.(png|jpg|webp)$`)

// FileStore writes and serves output files from a flat base directory.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath, creating the
// directory if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists output bytes under the given flat filename and returns the
// absolute path written.
func (s *FileStore) Write(name string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return path, nil
}

// Resolve validates an output filename and maps it into the base directory.
// Names carrying path separators or unexpected extensions are rejected, so a
// traversal attempt can never escape the output root.
func (s *FileStore) Resolve(name string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if name != filepath.Base(name) || !outputNamePattern.MatchString(name) {
		return "", fmt.Errorf("storage: invalid output name %q", name)
	}
	return filepath.Join(s.basePath, name), nil
}
