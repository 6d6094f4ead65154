package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/blueprint-importer/internal/gcs"
)

// Re-export interface from shared package
type StorageService = gcs.StorageService

var _ StorageService = (*GCSStorageService)(nil)

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage. It holds one client for the run.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage service. Without options the
// client uses Application Default Credentials.
func NewGCSStorageService(ctx context.Context, opts ...option.ClientOption) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// NewGCSStorageServiceWithClient wraps an existing client.
func NewGCSStorageServiceWithClient(client *storage.Client) *GCSStorageService {
	return &GCSStorageService{client: client}
}

// Close releases the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// FetchFromGCS delegates to FetchFromGCSWithClient with the shared client.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCSWithClient(ctx, s.client, gcsURI)
}

// UploadBytes delegates to UploadBytesWithClient with the shared client.
func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	return UploadBytesWithClient(ctx, s.client, bucketName, objectName, data, contentType)
}

// ExtractFilenameFromGCSURI delegates to the package function.
func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}
