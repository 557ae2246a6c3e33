package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idcard/backend/internal/models"
)

type MongoUserService struct {
	usersCol *mongo.Collection
}

var _ UserService = (*MongoUserService)(nil)

func NewMongoUserService(ctx context.Context, db *mongo.Database) *MongoUserService {
	col := db.Collection("users")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_name_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
	})

	return &MongoUserService{usersCol: col}
}

func (s *MongoUserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	doc, err := newUserDoc(req)
	if err != nil {
		return nil, err
	}

	if n, err := s.usersCol.CountDocuments(ctx, bson.M{"email_lower": doc.EmailLower}); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, ErrEmailExists
	}
	if n, err := s.usersCol.CountDocuments(ctx, bson.M{"user_name_lower": doc.UserNameLower}); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, ErrUserNameExists
	}

	if _, err := s.usersCol.InsertOne(ctx, doc); err != nil {
		// A concurrent register can still win the race; the unique index tells us which key.
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "email_lower") {
				return nil, ErrEmailExists
			}
			return nil, ErrUserNameExists
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.M{"email_lower": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return nil, err
	}
	if err := checkPassword(doc, password); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserService) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.M{"user_name_lower": strings.ToLower(strings.TrimSpace(userName))})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.M{"email_lower": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserService) UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	applyProfile(doc, req)

	_, err = s.usersCol.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"full_name":  doc.FullName,
			"avatar":     doc.Avatar,
			"updated_at": doc.UpdatedAt,
		},
	})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoUserService) Delete(ctx context.Context, id string) error {
	res, err := s.usersCol.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserService) findOne(ctx context.Context, filter bson.M) (*userDoc, error) {
	var doc userDoc
	if err := s.usersCol.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &doc, nil
}
