package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"giveaway-bot/internal/features/giveaway/repository"
	"giveaway-bot/internal/features/giveaway/repository/repositorytest"
)

// Runs against a real server: TEST_MONGO_URI=mongodb://localhost:27017
func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	n := 0
	repositorytest.Run(t, func(t *testing.T) repository.GiveawayRepository {
		n++
		db := client.Database(fmt.Sprintf("giveaway_test_%d_%d", time.Now().UnixNano(), n))
		t.Cleanup(func() { _ = db.Drop(ctx) })

		repo, err := NewMongoGiveawayRepository(ctx, db)
		require.NoError(t, err)
		return repo
	})
}
