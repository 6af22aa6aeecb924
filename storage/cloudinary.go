package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore keeps images on Cloudinary. Keys are used as public ids
// without their extension.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) publicID(key string) string {
	if i := strings.LastIndex(key, "."); i > strings.LastIndex(key, "/") {
		key = key[:i]
	}
	if s.folder == "" {
		return key
	}
	return s.folder + "/" + key
}

func (s *CloudinaryStore) Upload(ctx context.Context, fh *multipart.FileHeader, key string) (*Image, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	overwrite := true
	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     s.publicID(key),
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	return &Image{Key: key, URL: res.SecureURL}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.publicID(key),
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from cloudinary: %w", key, err)
	}
	return nil
}
