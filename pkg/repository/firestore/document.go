package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type documentDoc struct {
	ID               types.DocumentID `firestore:"ID"`
	UserID           types.UserID     `firestore:"UserID"`
	FilePath         string           `firestore:"FilePath"`
	OriginalFilename string           `firestore:"OriginalFilename"`
	FileType         string           `firestore:"FileType"`
	Size             int64            `firestore:"Size"`
	Summary          string           `firestore:"Summary,omitempty"`
	Tags             []string         `firestore:"Tags,omitempty"`
	CreatedAt        time.Time        `firestore:"CreatedAt"`
	UpdatedAt        time.Time        `firestore:"UpdatedAt"`
}

func toDocumentDoc(d *model.Document) *documentDoc {
	return &documentDoc{
		ID:               d.ID,
		UserID:           d.UserID,
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
		ID:               d.ID,
		UserID:           d.UserID,
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

func docToDocument(doc *firestore.DocumentSnapshot) (*model.Document, error) {
	var d documentDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromDocumentDoc(&d), nil
}

type documentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newDocumentRepository(client *firestore.Client) *documentRepository {
	return &documentRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *documentRepository) documentsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_documents"
	}
	return "documents"
}

func documentDocID(userID types.UserID, id types.DocumentID) string {
	return fmt.Sprintf("%s_%s", userID, id)
}

func (r *documentRepository) Put(ctx context.Context, doc *model.Document) (*model.Document, error) {
	docRef := r.client.Collection(r.documentsCollection()).Doc(documentDocID(doc.UserID, doc.ID))

	stored := doc.Clone()
	now := time.Now().UTC()
	existing, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", doc.ID))
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
	} else {
		prev, err := docToDocument(existing)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("id", doc.ID))
		}
		stored.CreatedAt = prev.CreatedAt
	}
	stored.UpdatedAt = now

	if _, err := docRef.Set(ctx, toDocumentDoc(stored)); err != nil {
		return nil, goerr.Wrap(err, "failed to put document", goerr.V("id", doc.ID))
	}

	return stored, nil
}

func (r *documentRepository) Get(ctx context.Context, userID types.UserID, id types.DocumentID) (*model.Document, error) {
	docRef := r.client.Collection(r.documentsCollection()).Doc(documentDocID(userID, id))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}

	d, err := docToDocument(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("id", id))
	}

	return d, nil
}

func (r *documentRepository) ListByIDs(ctx context.Context, userID types.UserID, ids []types.DocumentID) ([]*model.Document, error) {
	docs := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := r.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID types.UserID) ([]*model.Document, error) {
	iter := r.client.Collection(r.documentsCollection()).
		Where("UserID", "==", string(userID)).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	docs := make([]*model.Document, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("userID", userID))
		}

		d, err := docToDocument(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document")
		}

		docs = append(docs, d)
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, userID types.UserID, id types.DocumentID) (bool, error) {
	docRef := r.client.Collection(r.documentsCollection()).Doc(documentDocID(userID, id))

	_, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return false, goerr.Wrap(err, "failed to delete document", goerr.V("id", id))
	}

	return true, nil
}
