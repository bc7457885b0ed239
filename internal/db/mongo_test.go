package db_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wuwenbin0122/useradmin/internal/db"
	"github.com/wuwenbin0122/useradmin/internal/utils"
)

func TestMongoEnsureCollectionsRejectsDuplicateEmail(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	database := "useradmin_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	cfg := utils.MongoConfig{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 5 * time.Second,
	}

	store, err := db.NewMongo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		ctx := context.Background()
		store.Database.Drop(ctx)
		store.Close(ctx)
	}()

	if err := store.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("ensure collections failed: %v", err)
	}

	// A second call must be a no-op rather than an index conflict.
	if err := store.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("ensure collections is not idempotent: %v", err)
	}

	ctx := context.Background()

	if _, err := store.Users.InsertOne(ctx, bson.M{"email": "dup@example.com", "phoneNumber": "1"}); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	_, err = store.Users.InsertOne(ctx, bson.M{"email": "dup@example.com", "phoneNumber": "2"})
	if !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestNewMongoRequiresURI(t *testing.T) {
	if _, err := db.NewMongo(context.Background(), utils.MongoConfig{Database: "x"}); err == nil {
		t.Fatalf("expected error for missing uri")
	}
}
