package interfaces

import (
	"context"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ErrVersionConflict is returned by MemoryRepository.Save when the stored
// version no longer matches the version the caller read. It is the retry
// signal for optimistic concurrency; callers above the usecase layer
// never see it.
var ErrVersionConflict = goerr.New("memory snapshot version conflict")

// MemoryRepository defines the interface for MemorySnapshot persistence.
// Snapshots are keyed by (ThreadID, UserID); one live snapshot per pair.
type MemoryRepository interface {
	// Save persists the snapshot as an upsert on its key, stamping
	// Version to snapshot.Version+1. The write succeeds only if the
	// stored version still equals snapshot.Version (0 for a new key);
	// on mismatch it fails with ErrVersionConflict and stores nothing.
	// Returns the snapshot with its persisted version.
	Save(ctx context.Context, snapshot *model.MemorySnapshot) (*model.MemorySnapshot, error)

	// Get retrieves the snapshot for the key.
	// Returns nil, nil if no snapshot exists.
	Get(ctx context.Context, threadID types.ThreadID, userID types.UserID) (*model.MemorySnapshot, error)

	// Delete removes the snapshot for the key.
	// Returns false if no snapshot existed.
	Delete(ctx context.Context, threadID types.ThreadID, userID types.UserID) (bool, error)

	// DeleteByUser removes every snapshot owned by the user and
	// returns the number removed.
	DeleteByUser(ctx context.Context, userID types.UserID) (int, error)
}
