package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/storage"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrInvalidImage  = errors.New("invalid image file")
)

// ImageStore saves uploaded avatar images and serves them from a public URL.
type ImageStore interface {
	Upload(ctx context.Context, userID, contentType string, file io.Reader) (*models.ImageUploadResponse, error)
	Delete(ctx context.Context, userID, imageID string) error
	// DeleteByUserID removes every image the user uploaded and reports how many.
	DeleteByUserID(ctx context.Context, userID string) (int, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// IsValidImageType reports whether contentType is an accepted upload type.
func IsValidImageType(contentType string) bool {
	_, ok := imageExtensions[contentType]
	return ok
}

type imageRecord struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	UserID   string `json:"user_id"`
}

// LocalImageStore writes uploads to a directory served under /uploads/.
type LocalImageStore struct {
	mu        sync.RWMutex
	uploadDir string
	images    map[string]*imageRecord // imageID -> image info
	index     *storage.JSONStore[[]imageRecord]
}

// NewLocalImageStore keeps files in uploadDir and the owner index in
// dataDir/images.json.
func NewLocalImageStore(uploadDir, dataDir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("images: create upload dir: %w", err)
	}
	index, err := storage.NewJSONStore[[]imageRecord](dataDir, "images.json")
	if err != nil {
		return nil, err
	}
	records, err := index.Load()
	if err != nil {
		return nil, err
	}

	s := &LocalImageStore{
		uploadDir: uploadDir,
		images:    make(map[string]*imageRecord, len(records)),
		index:     index,
	}
	for i := range records {
		r := records[i]
		s.images[r.ID] = &r
	}
	return s, nil
}

func (s *LocalImageStore) Upload(_ context.Context, userID, contentType string, file io.Reader) (*models.ImageUploadResponse, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrInvalidImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imageID := uuid.New().String()
	filename := imageID + ext
	filePath := filepath.Join(s.uploadDir, filename)

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	s.images[imageID] = &imageRecord{ID: imageID, Filename: filename, UserID: userID}
	if err := s.persist(); err != nil {
		delete(s.images, imageID)
		os.Remove(filePath)
		return nil, err
	}

	return &models.ImageUploadResponse{
		ID:          imageID,
		URL:         "/uploads/" + filename,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *LocalImageStore) Delete(_ context.Context, userID, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.images[imageID]
	if !exists {
		return ErrImageNotFound
	}
	if record.UserID != userID {
		return ErrUnauthorized
	}

	if err := os.Remove(filepath.Join(s.uploadDir, record.Filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	delete(s.images, imageID)
	return s.persist()
}

func (s *LocalImageStore) DeleteByUserID(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]*imageRecord)
	for id, record := range s.images {
		if record.UserID != userID {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadDir, record.Filename)); err != nil && !os.IsNotExist(err) {
			for rid, r := range removed {
				s.images[rid] = r
			}
			return 0, fmt.Errorf("failed to delete file: %w", err)
		}
		removed[id] = record
		delete(s.images, id)
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.persist(); err != nil {
		return 0, err
	}
	return len(removed), nil
}

// ReadUpload returns the contents of a stored upload. Only files recorded in
// the index are served.
func (s *LocalImageStore) ReadUpload(_ context.Context, filename string) ([]byte, error) {
	id := strings.TrimSuffix(filename, filepath.Ext(filename))

	s.mu.RLock()
	record, exists := s.images[id]
	s.mu.RUnlock()
	if !exists || record.Filename != filename {
		return nil, ErrImageNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.uploadDir, record.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// persist must be called with mu held.
func (s *LocalImageStore) persist() error {
	records := make([]imageRecord, 0, len(s.images))
	for _, r := range s.images {
		records = append(records, *r)
	}
	return s.index.Save(records)
}
