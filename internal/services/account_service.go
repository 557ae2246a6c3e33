package services

import (
	"context"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

type AccountService struct {
	users  UserService
	cards  CardService
	images ImageStore
	cache  CardCache
	logger *zap.Logger
}

func NewAccountService(users UserService, cards CardService, images ImageStore, cache CardCache, logger *zap.Logger) *AccountService {
	if cache == nil {
		cache = NoopCardCache{}
	}
	return &AccountService{users: users, cards: cards, images: images, cache: cache, logger: logger}
}

type DeleteAccountResult struct {
	DeletedCards  int `json:"deleted_cards"`
	DeletedImages int `json:"deleted_images"`
	// ImageURLs lists uploaded images that could not be removed here and
	// should be cleaned up by the caller.
	ImageURLs []string `json:"image_urls"`
}

// DeleteAccount removes the user's cards, uploaded images and account.
// Cards go first so a failure never leaves cards without an owner.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) (*DeleteAccountResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	n, err := s.cards.DeleteByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, userID)

	result := &DeleteAccountResult{DeletedCards: n, ImageURLs: []string{}}
	if s.images != nil {
		deleted, err := s.images.DeleteByUserID(ctx, userID)
		result.DeletedImages = deleted
		if err != nil {
			s.logger.Warn("Image cleanup failed", zap.String("user_id", userID), zap.Int("deleted", deleted), zap.Error(err))
			if _, ok := uploadedImageID(user.Avatar); ok {
				result.ImageURLs = append(result.ImageURLs, user.Avatar)
			}
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return nil, err
	}

	s.logger.Info("Account deleted",
		zap.String("user_id", userID),
		zap.Int("deleted_cards", n),
		zap.Int("deleted_images", result.DeletedImages),
	)
	return result, nil
}

// uploadedImageID extracts the image id from a URL produced by one of the
// image stores. Avatars hosted elsewhere are left alone.
func uploadedImageID(avatar string) (string, bool) {
	if !strings.HasPrefix(avatar, "/uploads/") && !strings.HasPrefix(avatar, "https://storage.googleapis.com/") {
		return "", false
	}
	base := path.Base(avatar)
	id := strings.TrimSuffix(base, path.Ext(base))
	if id == "" || id == "." || id == "/" {
		return "", false
	}
	return id, true
}

// DefaultAccountTimeout bounds a whole account deletion.
func DefaultAccountTimeout() time.Duration { return 20 * time.Second }
