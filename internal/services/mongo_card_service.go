package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idcard/backend/internal/models"
)

type MongoCardService struct {
	cardsCol *mongo.Collection
}

var _ CardService = (*MongoCardService)(nil)

func NewMongoCardService(ctx context.Context, db *mongo.Database) *MongoCardService {
	col := db.Collection("cards")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})

	return &MongoCardService{cardsCol: col}
}

func (s *MongoCardService) Create(ctx context.Context, userID string, req *models.CardRequest) (*models.Card, error) {
	doc := newCardDoc(userID, req)
	if _, err := s.cardsCol.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoCardService) GetByID(ctx context.Context, id string) (*models.Card, error) {
	doc, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoCardService) ListByUserID(ctx context.Context, userID string) ([]models.Card, error) {
	cur, err := s.cardsCol.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Card, 0)
	for cur.Next(ctx) {
		var d cardDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoCardService) Update(ctx context.Context, userID, cardID string, req *models.CardRequest) (*models.Card, error) {
	doc, err := s.findByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, ErrUnauthorized
	}

	doc.apply(req, time.Now().UTC())
	res, err := s.cardsCol.ReplaceOne(ctx, bson.M{"_id": cardID, "user_id": userID}, doc)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrCardNotFound
	}
	return doc.toModel(), nil
}

func (s *MongoCardService) Delete(ctx context.Context, userID, cardID string) error {
	doc, err := s.findByID(ctx, cardID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return ErrUnauthorized
	}

	res, err := s.cardsCol.DeleteOne(ctx, bson.M{"_id": cardID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (s *MongoCardService) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	res, err := s.cardsCol.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *MongoCardService) findByID(ctx context.Context, id string) (*cardDoc, error) {
	var doc cardDoc
	if err := s.cardsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &doc, nil
}
