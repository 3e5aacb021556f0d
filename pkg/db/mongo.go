package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClient wraps a MongoDB connection to one database. Each mirrored
// dataset is a collection of that database.
type MongoClient struct {
	uri      string
	dbName   string
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoClient(uri, databaseName string) *MongoClient {
	return &MongoClient{uri: uri, dbName: databaseName}
}

// Connect dials and pings the server.
func (c *MongoClient) Connect(ctx context.Context) error {
	if c.uri == "" {
		return fmt.Errorf("mongo URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongo: %w", err)
	}
	c.client = client
	c.database = client.Database(c.dbName)
	return nil
}

func (c *MongoClient) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// Collection returns the named collection; Connect must have succeeded.
func (c *MongoClient) Collection(name string) *mongo.Collection {
	if c.database == nil {
		return nil
	}
	return c.database.Collection(name)
}
