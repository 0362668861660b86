package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

type documentStore struct {
	mu        sync.RWMutex
	documents map[types.UserID]map[types.DocumentID]*model.Document
}

func newDocumentStore() *documentStore {
	return &documentStore{
		documents: make(map[types.UserID]map[types.DocumentID]*model.Document),
	}
}

func (r *documentStore) Put(ctx context.Context, doc *model.Document) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := doc.Clone()
	now := time.Now().UTC()
	if existing, exists := r.documents[doc.UserID][doc.ID]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, exists := r.documents[doc.UserID]; !exists {
		r.documents[doc.UserID] = make(map[types.DocumentID]*model.Document)
	}
	r.documents[doc.UserID][doc.ID] = stored

	return stored.Clone(), nil
}

func (r *documentStore) Get(ctx context.Context, userID types.UserID, docID types.DocumentID) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[userID][docID]
	if !exists {
		return nil, nil
	}

	return doc.Clone(), nil
}

// ListByIDs returns the documents that exist; missing IDs are skipped.
func (r *documentStore) ListByIDs(ctx context.Context, userID types.UserID, docIDs []types.DocumentID) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*model.Document, 0, len(docIDs))
	for _, docID := range docIDs {
		if doc, exists := r.documents[userID][docID]; exists {
			docs = append(docs, doc.Clone())
		}
	}

	return docs, nil
}

func (r *documentStore) ListByUser(ctx context.Context, userID types.UserID) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*model.Document, 0, len(r.documents[userID]))
	for _, doc := range r.documents[userID] {
		docs = append(docs, doc.Clone())
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	return docs, nil
}

func (r *documentStore) Delete(ctx context.Context, userID types.UserID, docID types.DocumentID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[userID][docID]; !exists {
		return false, nil
	}

	delete(r.documents[userID], docID)
	if len(r.documents[userID]) == 0 {
		delete(r.documents, userID)
	}

	return true, nil
}
