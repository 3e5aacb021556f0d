package mirror

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"idea-harvest/pkg/db"
)

// MongoBackend mirrors each dataset as a collection of flat documents keyed
// by header names.
type MongoBackend struct {
	client *db.MongoClient
}

func NewMongoBackend(client *db.MongoClient) *MongoBackend {
	return &MongoBackend{client: client}
}

// EnsureDataset is a no-op: collections are created on first insert.
func (b *MongoBackend) EnsureDataset(ctx context.Context, name string, header []string) error {
	if b.client.Collection(name) == nil {
		return fmt.Errorf("mongo not connected")
	}
	return nil
}

func (b *MongoBackend) AppendRows(ctx context.Context, name string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := b.client.Collection(name).InsertMany(ctx, rowDocs(header, rows)); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

func (b *MongoBackend) ReplaceRows(ctx context.Context, name string, header []string, rows [][]string) error {
	if _, err := b.client.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	return b.AppendRows(ctx, name, header, rows)
}

func (b *MongoBackend) Close(ctx context.Context) error {
	return b.client.Close(ctx)
}

func rowDocs(header []string, rows [][]string) []interface{} {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		doc := make(bson.D, 0, len(header))
		for i, h := range header {
			if i < len(row) {
				doc = append(doc, bson.E{Key: h, Value: row[i]})
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
