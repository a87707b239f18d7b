package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dirStorage keeps objects as files under a root directory. Used by the batch
// generator for local output and by tests.
type dirStorage struct {
	root string
}

// NewDirStorage creates root if needed.
func NewDirStorage(root string) (FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &dirStorage{root: root}, nil
}

func (d *dirStorage) path(objectKey string) (string, error) {
	p := filepath.Join(d.root, filepath.FromSlash(objectKey))
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes storage root", objectKey)
	}
	return p, nil
}

func (d *dirStorage) PutObject(_ context.Context, objectKey string, _ string, body []byte) error {
	p, err := d.path(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0o644)
}

// GeneratePresignedDownloadURL returns a file:// URL; local files do not expire.
func (d *dirStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	p, err := d.path(objectKey)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrObjectNotFound
		}
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (d *dirStorage) DeleteObject(_ context.Context, objectKey string) error {
	p, err := d.path(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}
