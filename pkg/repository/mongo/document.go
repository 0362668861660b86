package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type documentDoc struct {
	Key              string    `bson:"_id"`
	DocumentID       string    `bson:"document_id"`
	UserID           string    `bson:"user_id"`
	FilePath         string    `bson:"file_path"`
	OriginalFilename string    `bson:"original_filename"`
	FileType         string    `bson:"file_type"`
	Size             int64     `bson:"size"`
	Summary          string    `bson:"summary,omitempty"`
	Tags             []string  `bson:"tags,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func documentDocID(userID types.UserID, id types.DocumentID) string {
	return fmt.Sprintf("%s_%s", userID, id)
}

func toDocumentDoc(d *model.Document) *documentDoc {
	return &documentDoc{
		Key:              documentDocID(d.UserID, d.ID),
		DocumentID:       string(d.ID),
		UserID:           string(d.UserID),
		FilePath:         d.FilePath,
		OriginalFilename: d.OriginalFilename,
		FileType:         d.FileType,
		Size:             d.Size,
		Summary:          d.Summary,
		Tags:             d.Tags,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func fromDocumentDoc(d *documentDoc) *model.Document {
	return &model.Document{
		ID:               types.DocumentID(d.DocumentID),
		UserID:           types.UserID(d.UserID),
		FilePath:         d.FilePath,
		OriginalFilename: d.OriginalFilename,
		FileType:         d.FileType,
		Size:             d.Size,
		Summary:          d.Summary,
		Tags:             d.Tags,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type documentRepository struct {
	db *mongo.Database
}

func newDocumentRepository(db *mongo.Database) *documentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) documents() *mongo.Collection {
	return r.db.Collection(documentsCollection)
}

func (r *documentRepository) Put(ctx context.Context, doc *model.Document) (*model.Document, error) {
	stored := doc.Clone()
	now := time.Now().UTC()

	var existing documentDoc
	err := r.documents().FindOne(ctx, bson.M{"_id": documentDocID(doc.UserID, doc.ID)}).Decode(&existing)
	switch {
	case err == nil:
		stored.CreatedAt = existing.CreatedAt
	case errors.Is(err, mongo.ErrNoDocuments):
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
	default:
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", doc.ID))
	}
	stored.UpdatedAt = now

	_, err = r.documents().ReplaceOne(ctx,
		bson.M{"_id": documentDocID(doc.UserID, doc.ID)},
		toDocumentDoc(stored),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to put document", goerr.V("id", doc.ID))
	}

	return stored, nil
}

func (r *documentRepository) Get(ctx context.Context, userID types.UserID, id types.DocumentID) (*model.Document, error) {
	var doc documentDoc
	err := r.documents().FindOne(ctx, bson.M{"_id": documentDocID(userID, id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}

	return fromDocumentDoc(&doc), nil
}

// ListByIDs fetches the requested documents with a single query and
// returns them in request order; missing IDs are skipped.
func (r *documentRepository) ListByIDs(ctx context.Context, userID types.UserID, ids []types.DocumentID) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, documentDocID(userID, id))
	}

	cursor, err := r.documents().Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find documents", goerr.V("userID", userID))
	}
	var docs []documentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, goerr.Wrap(err, "failed to decode documents", goerr.V("userID", userID))
	}

	byID := make(map[types.DocumentID]*model.Document, len(docs))
	for i := range docs {
		d := fromDocumentDoc(&docs[i])
		byID[d.ID] = d
	}

	result := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			result = append(result, d)
		}
	}

	return result, nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID types.UserID) ([]*model.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.documents().Find(ctx, bson.M{"user_id": string(userID)}, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find documents", goerr.V("userID", userID))
	}
	var docs []documentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, goerr.Wrap(err, "failed to decode documents", goerr.V("userID", userID))
	}

	result := make([]*model.Document, 0, len(docs))
	for i := range docs {
		result = append(result, fromDocumentDoc(&docs[i]))
	}

	return result, nil
}

func (r *documentRepository) Delete(ctx context.Context, userID types.UserID, id types.DocumentID) (bool, error) {
	result, err := r.documents().DeleteOne(ctx, bson.M{"_id": documentDocID(userID, id)})
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete document", goerr.V("id", id))
	}

	return result.DeletedCount > 0, nil
}
