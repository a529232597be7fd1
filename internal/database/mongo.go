package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/example/ecomserver/internal/repository"
)

// ConnectMongo dials the document store, pings it and ensures indexes.
// The returned client must be disconnected on shutdown.
func ConnectMongo(uri, dbName string) (*mongo.Client, *mongo.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatalf("failed to ping mongo: %v", err)
	}

	db := client.Database(dbName)
	if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
		log.Fatalf("mongo index setup failed: %v", err)
	}

	return client, db
}
