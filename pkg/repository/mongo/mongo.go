package mongo

import (
	"context"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	memoriesCollection  = "memories"
	documentsCollection = "documents"
)

type Mongo struct {
	client    *mongo.Client
	db        *mongo.Database
	memory    *memoryRepository
	documents *documentRepository
}

var _ interfaces.Repository = &Mongo{}

func New(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to mongodb", goerr.V("database", database))
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, goerr.Wrap(err, "failed to ping mongodb", goerr.V("database", database))
	}

	db := client.Database(database)
	m := &Mongo{
		client:    client,
		db:        db,
		memory:    newMemoryRepository(db),
		documents: newDocumentRepository(db),
	}

	return m, nil
}

func (m *Mongo) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Mongo) Document() interfaces.DocumentRepository {
	return m.documents
}

func (m *Mongo) Close() error {
	if m.client != nil {
		return m.client.Disconnect(context.Background())
	}
	return nil
}

// EnsureIndexes creates the collection indexes. Versioned writes rely on
// the unique (thread_id, user_id) index of the memories collection.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	memoryIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}
	if _, err := m.db.Collection(memoriesCollection).Indexes().CreateMany(ctx, memoryIndexes); err != nil {
		return goerr.Wrap(err, "failed to create memory indexes")
	}

	documentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	if _, err := m.db.Collection(documentsCollection).Indexes().CreateMany(ctx, documentIndexes); err != nil {
		return goerr.Wrap(err, "failed to create document indexes")
	}

	return nil
}
