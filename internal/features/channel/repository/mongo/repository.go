package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"giveaway-bot/internal/features/channel/models"
	"giveaway-bot/internal/features/channel/repository"
)

const settingsID = "main"

type mongoRepository struct {
	collection *mongo.Collection
}

// NewMongoSettingsRepository makes sure the settings document exists so later
// updates never need an upsert.
func NewMongoSettingsRepository(ctx context.Context, db *mongo.Database, defaultEnabled bool) (repository.SettingsRepository, error) {
	coll := db.Collection("settings")

	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$setOnInsert": bson.M{
			"force_subscribe": defaultEnabled,
			"force_channels":  bson.A{},
			"admins":          bson.A{},
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init settings: %w", err)
	}

	return &mongoRepository{collection: coll}, nil
}

func (r *mongoRepository) Get(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	if err := r.collection.FindOne(ctx, bson.M{"_id": settingsID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.Settings{}, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

func (r *mongoRepository) SetForceSubscribe(ctx context.Context, enabled bool) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$set": bson.M{"force_subscribe": enabled}},
	)
	if err != nil {
		return fmt.Errorf("failed to update force_subscribe: %w", err)
	}
	return nil
}

func (r *mongoRepository) AddForceChannel(ctx context.Context, ch models.ForceChannel) (bool, error) {
	// legacy bare ids are matched too
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":               settingsID,
			"force_channels.id": bson.M{"$ne": ch.ID},
			"force_channels":    bson.M{"$ne": ch.ID},
		},
		bson.M{"$push": bson.M{"force_channels": ch}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to add force channel: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoRepository) RemoveForceChannel(ctx context.Context, id int64) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$pull": bson.M{"force_channels": bson.M{"$in": bson.A{id, bson.M{"id": id}}}}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove force channel: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	// objects carrying extra fields need a field match
	res, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$pull": bson.M{"force_channels": bson.M{"id": id}}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove force channel: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoRepository) ReplaceForceChannels(ctx context.Context, channels []models.ForceChannel) error {
	if channels == nil {
		channels = []models.ForceChannel{}
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$set": bson.M{"force_channels": channels}},
	)
	if err != nil {
		return fmt.Errorf("failed to replace force channels: %w", err)
	}
	return nil
}

func (r *mongoRepository) AddAdmin(ctx context.Context, id int64) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$addToSet": bson.M{"admins": id}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to add admin: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoRepository) RemoveAdmin(ctx context.Context, id int64) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": settingsID},
		bson.M{"$pull": bson.M{"admins": id}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove admin: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
