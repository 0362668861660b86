package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// snapshotKey is a composite key for memory snapshots (threadID + userID)
type snapshotKey struct {
	threadID types.ThreadID
	userID   types.UserID
}

type snapshotStore struct {
	mu        sync.RWMutex
	snapshots map[snapshotKey]*model.MemorySnapshot
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{
		snapshots: make(map[snapshotKey]*model.MemorySnapshot),
	}
}

// Save applies the compare-and-set rule under the write lock: the stored
// version must equal the caller's version (0 for a new key), otherwise
// the write is rejected and nothing changes.
func (r *snapshotStore) Save(ctx context.Context, snapshot *model.MemorySnapshot) (*model.MemorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := snapshotKey{threadID: snapshot.ThreadID, userID: snapshot.UserID}

	var stored int64
	if existing, exists := r.snapshots[key]; exists {
		stored = existing.Version
	}
	if stored != snapshot.Version {
		return nil, goerr.Wrap(interfaces.ErrVersionConflict, "stored version does not match",
			goerr.V("threadID", snapshot.ThreadID),
			goerr.V("userID", snapshot.UserID),
			goerr.V("expected", snapshot.Version),
			goerr.V("stored", stored),
		)
	}

	saved := snapshot.Clone()
	saved.Version = snapshot.Version + 1
	saved.UpdatedAt = time.Now().UTC()

	r.snapshots[key] = saved
	return saved.Clone(), nil
}

func (r *snapshotStore) Get(ctx context.Context, threadID types.ThreadID, userID types.UserID) (*model.MemorySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := snapshotKey{threadID: threadID, userID: userID}
	snapshot, exists := r.snapshots[key]
	if !exists {
		return nil, nil
	}

	return snapshot.Clone(), nil
}

func (r *snapshotStore) Delete(ctx context.Context, threadID types.ThreadID, userID types.UserID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := snapshotKey{threadID: threadID, userID: userID}
	if _, exists := r.snapshots[key]; !exists {
		return false, nil
	}

	delete(r.snapshots, key)
	return true, nil
}

func (r *snapshotStore) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key := range r.snapshots {
		if key.userID == userID {
			delete(r.snapshots, key)
			deleted++
		}
	}

	return deleted, nil
}
