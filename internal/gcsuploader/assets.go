package gcsuploader

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

// DefaultPublicBaseURL serves objects of publicly readable buckets.
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// AssetStore keeps relocated assets in a GCS bucket. The returned asset
// reference is the object's public URL, which is what backends without a
// native asset store (Notion) can link to.
type AssetStore struct {
	storage       StorageService
	bucket        string
	prefix        string
	publicBaseURL string
	newID         func() string
}

// NewAssetStore creates a bucket-backed asset store. prefix may be empty;
// publicBaseURL defaults to DefaultPublicBaseURL.
func NewAssetStore(storage StorageService, bucket, prefix, publicBaseURL string) *AssetStore {
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &AssetStore{
		storage:       storage,
		bucket:        bucket,
		prefix:        strings.Trim(prefix, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		newID:         uuid.NewString,
	}
}

// UploadAsset stores data under <prefix>/<uuid>/<filename> and returns its public URL.
// The project id is part of the object path so several projects can share a bucket.
func (s *AssetStore) UploadAsset(ctx context.Context, projectID string, data []byte, meta domain.AssetMeta) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("UploadAsset: no bucket configured")
	}

	object := path.Join(s.prefix, projectID, s.newID(), meta.Filename)
	if err := s.storage.UploadBytes(ctx, s.bucket, object, data, meta.ContentType); err != nil {
		return "", fmt.Errorf("UploadAsset: upload %s: %w", object, err)
	}

	return s.publicBaseURL + "/" + s.bucket + "/" + escapeObjectPath(object), nil
}

func escapeObjectPath(object string) string {
	segments := strings.Split(object, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
