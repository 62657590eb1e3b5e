package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/lumbarong/lumbarong-api/utils"
)

// ObjectStorage stores uploaded media and resolves stored keys to URLs
type ObjectStorage interface {
	Put(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// LocalStorage keeps uploads on the local filesystem and serves them from /api/v1/uploads
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a filesystem store rooted at dir
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

// Dir returns the directory uploads are written to
func (l *LocalStorage) Dir() string {
	return l.dir
}

// Put saves the file and returns its generated filename as the key
func (l *LocalStorage) Put(_ context.Context, fileHeader *multipart.FileHeader) (string, error) {
	return utils.SaveUploadedFile(fileHeader, l.dir)
}

// URL returns the API path for a stored file
func (l *LocalStorage) URL(_ context.Context, key string) (string, error) {
	return utils.MediaURL(key), nil
}

// Delete removes a stored file. Missing files are not an error.
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(l.dir, filepath.Base(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
