package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/storage"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrUserNameExists  = errors.New("user name already taken")
	ErrInvalidPassword = errors.New("invalid password")
)

// UserService stores accounts. User names and emails are unique and
// matched case-insensitively.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// userDoc is the persisted form of a user. Unlike models.User it keeps the
// password hash.
type userDoc struct {
	ID            string    `json:"id" bson:"_id"`
	FullName      string    `json:"full_name" bson:"full_name"`
	UserName      string    `json:"user_name" bson:"user_name"`
	UserNameLower string    `json:"user_name_lower" bson:"user_name_lower"`
	Email         string    `json:"email" bson:"email"`
	EmailLower    string    `json:"email_lower" bson:"email_lower"`
	Avatar        string    `json:"avatar" bson:"avatar,omitempty"`
	PasswordHash  string    `json:"password_hash" bson:"password_hash"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

func (d *userDoc) toModel() *models.User {
	return &models.User{
		ID:           d.ID,
		FullName:     d.FullName,
		UserName:     d.UserName,
		Email:        d.Email,
		Avatar:       d.Avatar,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func newUserDoc(req *models.RegisterRequest) (*userDoc, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	email := strings.TrimSpace(req.Email)
	userName := strings.TrimSpace(req.UserName)
	return &userDoc{
		ID:            uuid.New().String(),
		FullName:      strings.TrimSpace(req.FullName),
		UserName:      userName,
		UserNameLower: strings.ToLower(userName),
		Email:         email,
		EmailLower:    strings.ToLower(email),
		PasswordHash:  string(hashed),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func checkPassword(d *userDoc, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

func applyProfile(d *userDoc, req *models.UpdateProfileRequest) {
	if req.FullName != nil {
		d.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Avatar != nil {
		d.Avatar = strings.TrimSpace(*req.Avatar)
	}
	d.UpdatedAt = time.Now().UTC()
}

// MemoryUserService keeps users in memory and, when given a data dir,
// persists them to users.json after every write.
type MemoryUserService struct {
	mu         sync.RWMutex
	users      map[string]*userDoc
	byEmail    map[string]string // lower(email) -> id
	byUserName map[string]string // lower(user_name) -> id
	store      *storage.JSONStore[[]userDoc]
}

var _ UserService = (*MemoryUserService)(nil)

func NewMemoryUserService(dataDir string) (*MemoryUserService, error) {
	s := &MemoryUserService{
		users:      make(map[string]*userDoc),
		byEmail:    make(map[string]string),
		byUserName: make(map[string]string),
	}
	if dataDir == "" {
		return s, nil
	}

	store, err := storage.NewJSONStore[[]userDoc](dataDir, "users.json")
	if err != nil {
		return nil, err
	}
	docs, err := store.Load()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		d := docs[i]
		s.users[d.ID] = &d
		s.byEmail[d.EmailLower] = d.ID
		s.byUserName[d.UserNameLower] = d.ID
	}
	s.store = store
	return s, nil
}

func (s *MemoryUserService) Register(_ context.Context, req *models.RegisterRequest) (*models.User, error) {
	doc, err := newUserDoc(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[doc.EmailLower]; exists {
		return nil, ErrEmailExists
	}
	if _, exists := s.byUserName[doc.UserNameLower]; exists {
		return nil, ErrUserNameExists
	}

	s.users[doc.ID] = doc
	s.byEmail[doc.EmailLower] = doc.ID
	s.byUserName[doc.UserNameLower] = doc.ID
	if err := s.persist(); err != nil {
		delete(s.users, doc.ID)
		delete(s.byEmail, doc.EmailLower)
		delete(s.byUserName, doc.UserNameLower)
		return nil, err
	}

	return doc.toModel(), nil
}

func (s *MemoryUserService) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !exists {
		return nil, ErrUserNotFound
	}
	doc := s.users[id]
	if err := checkPassword(doc, password); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MemoryUserService) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return doc.toModel(), nil
}

func (s *MemoryUserService) GetByUserName(_ context.Context, userName string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byUserName[strings.ToLower(strings.TrimSpace(userName))]
	if !exists {
		return nil, ErrUserNotFound
	}
	return s.users[id].toModel(), nil
}

func (s *MemoryUserService) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !exists {
		return nil, ErrUserNotFound
	}
	return s.users[id].toModel(), nil
}

func (s *MemoryUserService) UpdateProfile(_ context.Context, id string, req *models.UpdateProfileRequest) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}

	prev := *doc
	applyProfile(doc, req)
	if err := s.persist(); err != nil {
		*doc = prev
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MemoryUserService) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.users[id]
	if !exists {
		return ErrUserNotFound
	}

	delete(s.users, id)
	delete(s.byEmail, doc.EmailLower)
	delete(s.byUserName, doc.UserNameLower)
	if err := s.persist(); err != nil {
		s.users[id] = doc
		s.byEmail[doc.EmailLower] = id
		s.byUserName[doc.UserNameLower] = id
		return err
	}
	return nil
}

// persist must be called with mu held.
func (s *MemoryUserService) persist() error {
	if s.store == nil {
		return nil
	}
	docs := make([]userDoc, 0, len(s.users))
	for _, d := range s.users {
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return s.store.Save(docs)
}
