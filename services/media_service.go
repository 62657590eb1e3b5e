package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/lumbarong/lumbarong-api/utils"
)

// UploadedMedia describes a stored upload
type UploadedMedia struct {
	Key  string          `json:"key"`
	URL  string          `json:"url"`
	Kind utils.MediaKind `json:"kind"`
}

// MediaService validates uploads (receipts, review photos, return proof) and stores them
type MediaService struct {
	storage ObjectStorage
}

var mediaServiceInstance *MediaService

// NewMediaService creates a media service on top of storage
func NewMediaService(storage ObjectStorage) *MediaService {
	return &MediaService{storage: storage}
}

// InitMediaService initializes the global media service
func InitMediaService(storage ObjectStorage) *MediaService {
	mediaServiceInstance = NewMediaService(storage)
	return mediaServiceInstance
}

// GetMediaService returns the initialized media service instance
func GetMediaService() *MediaService {
	return mediaServiceInstance
}

// SetMediaService sets the media service instance (primarily for testing)
func SetMediaService(service *MediaService) {
	mediaServiceInstance = service
}

// Upload validates and stores an image or proof video
func (s *MediaService) Upload(ctx context.Context, fileHeader *multipart.FileHeader) (*UploadedMedia, error) {
	kind, err := utils.ValidateMediaFile(fileHeader)
	if err != nil {
		return nil, err
	}

	key, err := s.storage.Put(ctx, fileHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	url, err := s.storage.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload URL: %w", err)
	}

	return &UploadedMedia{Key: key, URL: url, Kind: kind}, nil
}

// URL resolves a stored key. Empty keys resolve to "".
func (s *MediaService) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.storage.URL(ctx, key)
}

// Delete removes a stored upload
func (s *MediaService) Delete(ctx context.Context, key string) error {
	return s.storage.Delete(ctx, key)
}
