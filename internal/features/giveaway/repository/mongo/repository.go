package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"giveaway-bot/internal/features/giveaway/models"
	"giveaway-bot/internal/features/giveaway/repository"
)

const (
	collectionGiveaways = "giveaways"
	maxCloseRetries     = 10
)

type mongoRepository struct {
	collection *mongo.Collection
}

// NewMongoGiveawayRepository ensures indexes and returns the repository. The
// partial unique index on status=active is what enforces a single active giveaway.
func NewMongoGiveawayRepository(ctx context.Context, db *mongo.Database) (repository.GiveawayRepository, error) {
	coll := db.Collection(collectionGiveaways)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}},
			Options: options.Index().
				SetName("one_active_giveaway").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.GiveawayStatusActive}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_created_at"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create giveaway indexes: %w", err)
	}

	return &mongoRepository{collection: coll}, nil
}

func (r *mongoRepository) CreateActive(ctx context.Context, g *models.Giveaway) error {
	doc := g.Clone()
	doc.Status = models.GiveawayStatusActive
	// $push needs an array, never null
	if doc.Participants == nil {
		doc.Participants = []int64{}
	}
	if doc.Winners == nil {
		doc.Winners = []int64{}
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrActiveExists
		}
		return fmt.Errorf("failed to insert giveaway: %w", err)
	}
	return nil
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*models.Giveaway, error) {
	var g models.Giveaway
	if err := r.collection.FindOne(ctx, filter).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to find giveaway: %w", err)
	}
	if err := repository.Normalize(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *mongoRepository) GetActive(ctx context.Context) (*models.Giveaway, error) {
	return r.findOne(ctx, bson.M{"status": models.GiveawayStatusActive})
}

func (r *mongoRepository) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepository) AddParticipantIfAbsent(ctx context.Context, id string, userID int64) (bool, int, error) {
	var joined struct {
		Count int `bson:"count"`
	}
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.GiveawayStatusActive, "participants": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"participants": userID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"count": bson.M{"$size": "$participants"}}),
	).Decode(&joined)
	if err == nil {
		return true, joined.Count, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return false, 0, fmt.Errorf("failed to add participant: %w", err)
	}

	g, err := r.GetByID(ctx, id)
	if err != nil {
		return false, 0, err
	}
	if g.Status != models.GiveawayStatusActive {
		return false, 0, repository.ErrNotActive
	}
	return false, g.ParticipantsCount(), nil
}

func (r *mongoRepository) CloseActive(ctx context.Context, id string, pick repository.PickFunc) (*models.Giveaway, error) {
	for i := 0; i < maxCloseRetries; i++ {
		g, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if g.Status != models.GiveawayStatusActive {
			return nil, repository.ErrStatusConflict
		}

		winners, to := pick(append([]int64(nil), g.Participants...))
		g.Winners = append([]int64{}, winners...)
		g.Status = to
		g.UpdatedAt = time.Now().UTC()

		// participants only grow, so an unchanged size means an unchanged pool
		res, err := r.collection.UpdateOne(ctx,
			bson.M{
				"_id":          id,
				"status":       models.GiveawayStatusActive,
				"participants": bson.M{"$size": len(g.Participants)},
			},
			bson.M{"$set": bson.M{
				"status":     g.Status,
				"winners":    g.Winners,
				"updated_at": g.UpdatedAt,
			}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to close giveaway: %w", err)
		}
		if res.MatchedCount == 1 {
			return g, nil
		}
	}
	return nil, repository.ErrStatusConflict
}

func (r *mongoRepository) SetStatus(ctx context.Context, id string, from, to models.GiveawayStatus) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update giveaway status: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return repository.ErrStatusConflict
}

func (r *mongoRepository) ReplaceWinners(ctx context.Context, id string, winners []int64) error {
	if winners == nil {
		winners = []int64{}
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []models.GiveawayStatus{
			models.GiveawayStatusEnded, models.GiveawayStatusAnnounced,
		}}},
		bson.M{"$set": bson.M{"winners": winners, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to replace winners: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return repository.ErrStatusConflict
}

func (r *mongoRepository) ListRecent(ctx context.Context, statuses []models.GiveawayStatus, limit int) ([]*models.Giveaway, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list giveaways: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.Giveaway
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode giveaways: %w", err)
	}
	for _, g := range out {
		if err := repository.Normalize(g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *mongoRepository) CountByStatus(ctx context.Context, status models.GiveawayStatus) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count giveaways: %w", err)
	}
	return n, nil
}

func (r *mongoRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}
