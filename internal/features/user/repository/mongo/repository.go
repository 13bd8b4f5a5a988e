package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"giveaway-bot/internal/features/user/models"
	"giveaway-bot/internal/features/user/repository"
)

type userRepository struct {
	users *mongo.Collection
}

func NewUserRepository(ctx context.Context, db *mongo.Database) (repository.UserRepository, error) {
	users := db.Collection("users")

	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "referred_by", Value: 1}},
		Options: options.Index().SetName("referred_by").SetSparse(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create users index: %w", err)
	}

	return &userRepository{users: users}, nil
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	_, err := r.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return true, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	_, err := r.users.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListIDs(ctx context.Context) ([]int64, error) {
	cur, err := r.users.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var doc struct {
			ID int64 `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return ids, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.users.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *userRepository) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{"referred_by": referrerID})
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return n, nil
}

type chatRepository struct {
	chats *mongo.Collection
}

func NewChatRepository(db *mongo.Database) repository.ChatRepository {
	return &chatRepository{chats: db.Collection("chats")}
}

func (r *chatRepository) Upsert(ctx context.Context, chat *models.Chat) error {
	_, err := r.chats.ReplaceOne(ctx, bson.M{"_id": chat.ID}, chat, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (r *chatRepository) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := r.chats.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to remove chat: %w", err)
	}
	return res.DeletedCount == 1, nil
}

func (r *chatRepository) List(ctx context.Context) ([]*models.Chat, error) {
	cur, err := r.chats.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	var chats []*models.Chat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}
