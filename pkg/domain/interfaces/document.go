package interfaces

import (
	"context"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

// DocumentRepository defines the interface for Document metadata access
type DocumentRepository interface {
	// Put upserts a document keyed by (UserID, ID)
	Put(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Get retrieves a document by ID.
	// Returns nil, nil if the document does not exist.
	Get(ctx context.Context, userID types.UserID, id types.DocumentID) (*model.Document, error)

	// ListByIDs retrieves the documents matching the given IDs.
	// Missing IDs are skipped, not errors.
	ListByIDs(ctx context.Context, userID types.UserID, ids []types.DocumentID) ([]*model.Document, error)

	// ListByUser retrieves all documents owned by the user
	ListByUser(ctx context.Context, userID types.UserID) ([]*model.Document, error)

	// Delete removes a document by ID.
	// Returns false if no document existed.
	Delete(ctx context.Context, userID types.UserID, id types.DocumentID) (bool, error)
}
