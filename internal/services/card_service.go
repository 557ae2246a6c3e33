package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/storage"
)

var (
	ErrCardNotFound = errors.New("card not found")
	ErrUnauthorized = errors.New("unauthorized to modify this card")
)

// CardService stores cards. Lists are ordered by creation time, oldest
// first. Only the owning user may update or delete a card.
type CardService interface {
	Create(ctx context.Context, userID string, req *models.CardRequest) (*models.Card, error)
	GetByID(ctx context.Context, id string) (*models.Card, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Card, error)
	Update(ctx context.Context, userID, cardID string, req *models.CardRequest) (*models.Card, error)
	Delete(ctx context.Context, userID, cardID string) error
	// DeleteByUserID removes every card the user owns and reports how many.
	DeleteByUserID(ctx context.Context, userID string) (int, error)
}

type cardDoc struct {
	ID          string              `json:"id" bson:"_id"`
	UserID      string              `json:"user_id" bson:"user_id"`
	CardType    models.CardType     `json:"card_type" bson:"card_type"`
	Job         string              `json:"job" bson:"job"`
	Company     string              `json:"company" bson:"company"`
	Bio         string              `json:"bio" bson:"bio"`
	Phone       string              `json:"phone" bson:"phone"`
	WebSite     string              `json:"web_site" bson:"web_site"`
	Address     string              `json:"address" bson:"address"`
	SocialLinks []models.SocialLink `json:"socialLinks" bson:"social_links"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" bson:"updated_at"`
}

func newCardDoc(userID string, req *models.CardRequest) *cardDoc {
	now := time.Now().UTC()
	d := &cardDoc{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
	}
	d.apply(req, now)
	return d
}

// apply replaces every editable field with the request's values.
func (d *cardDoc) apply(req *models.CardRequest, now time.Time) {
	d.CardType = req.CardType
	d.Job = req.Job
	d.Company = req.Company
	d.Bio = req.Bio
	d.Phone = req.Phone
	d.WebSite = req.WebSite
	d.Address = req.Address
	d.SocialLinks = append([]models.SocialLink{}, req.SocialLinks...)
	d.UpdatedAt = now
}

func (d *cardDoc) toModel() *models.Card {
	links := append([]models.SocialLink{}, d.SocialLinks...)
	return &models.Card{
		ID:          d.ID,
		UserID:      d.UserID,
		CardType:    d.CardType,
		Job:         d.Job,
		Company:     d.Company,
		Bio:         d.Bio,
		Phone:       d.Phone,
		WebSite:     d.WebSite,
		Address:     d.Address,
		SocialLinks: links,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MemoryCardService keeps cards in insertion order and, when given a data
// dir, persists them to cards.json after every write.
type MemoryCardService struct {
	mu    sync.RWMutex
	cards map[string]*cardDoc
	order []string
	store *storage.JSONStore[[]cardDoc]
}

var _ CardService = (*MemoryCardService)(nil)

func NewMemoryCardService(dataDir string) (*MemoryCardService, error) {
	s := &MemoryCardService{
		cards: make(map[string]*cardDoc),
	}
	if dataDir == "" {
		return s, nil
	}

	store, err := storage.NewJSONStore[[]cardDoc](dataDir, "cards.json")
	if err != nil {
		return nil, err
	}
	docs, err := store.Load()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		d := docs[i]
		s.cards[d.ID] = &d
		s.order = append(s.order, d.ID)
	}
	s.store = store
	return s, nil
}

func (s *MemoryCardService) Create(_ context.Context, userID string, req *models.CardRequest) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := newCardDoc(userID, req)
	s.cards[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	if err := s.persist(); err != nil {
		delete(s.cards, doc.ID)
		s.order = s.order[:len(s.order)-1]
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MemoryCardService) GetByID(_ context.Context, id string) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.cards[id]
	if !exists {
		return nil, ErrCardNotFound
	}
	return doc.toModel(), nil
}

func (s *MemoryCardService) ListByUserID(_ context.Context, userID string) ([]models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Card, 0)
	for _, id := range s.order {
		if doc := s.cards[id]; doc.UserID == userID {
			out = append(out, *doc.toModel())
		}
	}
	return out, nil
}

func (s *MemoryCardService) Update(_ context.Context, userID, cardID string, req *models.CardRequest) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.cards[cardID]
	if !exists {
		return nil, ErrCardNotFound
	}
	if doc.UserID != userID {
		return nil, ErrUnauthorized
	}

	prev := *doc
	doc.apply(req, time.Now().UTC())
	if err := s.persist(); err != nil {
		*doc = prev
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MemoryCardService) Delete(_ context.Context, userID, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.cards[cardID]
	if !exists {
		return ErrCardNotFound
	}
	if doc.UserID != userID {
		return ErrUnauthorized
	}

	prevOrder := append([]string(nil), s.order...)
	delete(s.cards, cardID)
	for i, id := range s.order {
		if id == cardID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if err := s.persist(); err != nil {
		s.cards[cardID] = doc
		s.order = prevOrder
		return err
	}
	return nil
}

func (s *MemoryCardService) DeleteByUserID(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevOrder := append([]string(nil), s.order...)
	removed := make(map[string]*cardDoc)
	kept := s.order[:0]
	for _, id := range s.order {
		if doc := s.cards[id]; doc.UserID == userID {
			removed[id] = doc
			delete(s.cards, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.persist(); err != nil {
		for id, doc := range removed {
			s.cards[id] = doc
		}
		s.order = prevOrder
		return 0, err
	}
	return len(removed), nil
}

// persist must be called with mu held.
func (s *MemoryCardService) persist() error {
	if s.store == nil {
		return nil
	}
	docs := make([]cardDoc, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, *s.cards[id])
	}
	return s.store.Save(docs)
}
