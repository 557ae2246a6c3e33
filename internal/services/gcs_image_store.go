package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/idcard/backend/internal/models"
)

const gcsImagePrefix = "images/"

// GCSImageStore keeps uploads in a Cloud Storage bucket. The uploader's id
// is recorded in object metadata and checked on delete.
type GCSImageStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

var _ ImageStore = (*GCSImageStore)(nil)

// NewGCSImageStore uses Application Default Credentials.
func NewGCSImageStore(ctx context.Context, bucket string, logger *zap.Logger) (*GCSImageStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: storage client: %w", err)
	}
	return &GCSImageStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *GCSImageStore) Close() error {
	return s.client.Close()
}

func (s *GCSImageStore) Upload(ctx context.Context, userID, contentType string, file io.Reader) (*models.ImageUploadResponse, error) {
	if !IsValidImageType(contentType) {
		return nil, ErrInvalidImage
	}

	imageID := uuid.New().String()
	name := gcsImagePrefix + imageID
	obj := s.client.Bucket(s.bucket).Object(name)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"user_id": userID}

	size, err := io.Copy(w, file)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gcs: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gcs: close %s: %w", name, err)
	}

	s.logger.Info("Image uploaded", zap.String("bucket", s.bucket), zap.String("object", name), zap.Int64("size", size))
	return &models.ImageUploadResponse{
		ID:          imageID,
		URL:         fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name),
		Filename:    name,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *GCSImageStore) Delete(ctx context.Context, userID, imageID string) error {
	obj := s.client.Bucket(s.bucket).Object(gcsImagePrefix + imageID)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrImageNotFound
		}
		return err
	}
	if attrs.Metadata["user_id"] != userID {
		return ErrUnauthorized
	}

	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs: delete %s: %w", attrs.Name, err)
	}
	return nil
}

// DeleteByUserID walks the image prefix and removes objects whose metadata
// names the user.
func (s *GCSImageStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: gcsImagePrefix})

	deleted := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("gcs: list %s: %w", gcsImagePrefix, err)
		}
		if attrs.Metadata["user_id"] != userID {
			continue
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return deleted, fmt.Errorf("gcs: delete %s: %w", attrs.Name, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("User images deleted", zap.String("bucket", s.bucket), zap.String("user_id", userID), zap.Int("count", deleted))
	}
	return deleted, nil
}
