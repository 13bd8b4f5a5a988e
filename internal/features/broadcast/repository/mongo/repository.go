package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/broadcast/repository"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoHistoryRepository(db *mongo.Database) repository.HistoryRepository {
	return &mongoRepository{collection: db.Collection("broadcasts")}
}

func (r *mongoRepository) Save(ctx context.Context, rec *models.Record) error {
	if _, err := r.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert broadcast record: %w", err)
	}
	return nil
}

func (r *mongoRepository) Recent(ctx context.Context, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find broadcast records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.Record
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode broadcast records: %w", err)
	}
	return out, nil
}
