package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/blanjamart/account-service/internal/application"
	"github.com/blanjamart/account-service/pkg/helpers"
)

// AssetStore stores profile photos in a Cloud Storage bucket. The handle
// returned on upload is the object path, which is all that is needed to
// delete the asset later.
type AssetStore struct {
	Client *storage.Client
	Bucket string
	Prefix string // e.g. "photos"
}

func NewAssetStore(client *storage.Client, bucket, prefix string) *AssetStore {
	return &AssetStore{Client: client, Bucket: bucket, Prefix: prefix}
}

// Upload writes the image under a fresh object name and returns its public
// URL plus the object path as the deletion handle.
func (s *AssetStore) Upload(ctx context.Context, img application.ImageUpload) (application.Asset, error) {
	if s.Client == nil || s.Bucket == "" {
		return application.Asset{}, fmt.Errorf("gcs not configured")
	}
	ext := strings.ToLower(filepath.Ext(img.Filename))
	objectPath := path.Join(s.Prefix, uuid.NewString()+ext)

	wc := s.Client.Bucket(s.Bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = img.ContentType
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, img.Reader); err != nil {
		_ = wc.Close()
		return application.Asset{}, err
	}
	if err := wc.Close(); err != nil {
		return application.Asset{}, err
	}
	return application.Asset{URL: helpers.PublicURL(s.Bucket, objectPath), Handle: objectPath}, nil
}

// Delete removes a previously uploaded object by its handle.
func (s *AssetStore) Delete(ctx context.Context, handle string) error {
	if s.Client == nil || s.Bucket == "" {
		return fmt.Errorf("gcs not configured")
	}
	return s.Client.Bucket(s.Bucket).Object(handle).Delete(ctx)
}

var _ application.AssetStore = (*AssetStore)(nil)
