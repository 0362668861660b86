package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const maxSaveAttempts = 3

// MemoryUseCase orchestrates snapshot persistence: cache-first loads,
// versioned saves with bounded conflict retry, and a drain mode that
// turns flush failures into log lines during shutdown.
type MemoryUseCase struct {
	repo        interfaces.Repository
	cache       *snapshotCache
	maxMessages int
	draining    atomic.Bool
}

type MemoryOption func(*MemoryUseCase)

// WithMemoryWindow bounds the number of messages kept per snapshot.
// Zero or negative keeps every message.
func WithMemoryWindow(n int) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.maxMessages = n
	}
}

func WithCacheTTL(ttl time.Duration) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.cache = newSnapshotCache(ttl)
	}
}

func NewMemoryUseCase(repo interfaces.Repository, opts ...MemoryOption) *MemoryUseCase {
	uc := &MemoryUseCase{
		repo:        repo,
		cache:       newSnapshotCache(snapshotCacheTTL),
		maxMessages: model.DefaultMemoryWindow,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// BeginDrain switches the usecase to best-effort mode: from here on a
// failed save is logged instead of surfaced. Called once at the top of
// pool shutdown; there is no way back.
func (uc *MemoryUseCase) BeginDrain() {
	uc.draining.Store(true)
}

// Load returns the snapshot for the key, reading through the cache.
// Returns nil, nil when no snapshot exists.
func (uc *MemoryUseCase) Load(ctx context.Context, threadID types.ThreadID, userID types.UserID) (*model.MemorySnapshot, error) {
	if snapshot, ok := uc.cache.get(threadID, userID); ok {
		return snapshot, nil
	}

	snapshot, err := uc.repo.Memory().Get(ctx, threadID, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory snapshot",
			goerr.V(ThreadIDKey, threadID),
			goerr.V(UserIDKey, userID),
		)
	}
	if snapshot == nil {
		return nil, nil
	}

	uc.cache.set(snapshot)
	return snapshot, nil
}

// CreateIfAbsent returns the existing snapshot or persists a fresh one
// with the given initial context. Concurrent creators converge on
// whichever write wins.
func (uc *MemoryUseCase) CreateIfAbsent(ctx context.Context, threadID types.ThreadID, userID types.UserID, initial *model.MemoryContext) (*model.MemorySnapshot, error) {
	return retryOnConflict(ctx, maxSaveAttempts, func(ctx context.Context) (*model.MemorySnapshot, error) {
		snapshot, err := uc.Load(ctx, threadID, userID)
		if err != nil {
			return nil, err
		}
		if snapshot != nil {
			return snapshot, nil
		}

		fresh := model.NewMemorySnapshot(threadID, userID)
		if initial != nil {
			fresh.Context = initial.Clone()
		}
		return uc.saveThrough(ctx, fresh)
	})
}

// AppendMessage records one message on the thread's snapshot, trimming
// the oldest entries beyond the window. The snapshot is created on
// first use.
func (uc *MemoryUseCase) AppendMessage(ctx context.Context, threadID types.ThreadID, userID types.UserID, role types.MessageRole, content string, metadata map[string]any) (*model.MemorySnapshot, error) {
	msg := model.MemoryMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	return uc.mutateSnapshot(ctx, threadID, userID, func(s *model.MemorySnapshot) {
		s.Append(msg, uc.maxMessages)
	})
}

// UpdateContext merges the partial update into the thread's context.
// Unknown or mistyped keys are logged and skipped.
func (uc *MemoryUseCase) UpdateContext(ctx context.Context, threadID types.ThreadID, userID types.UserID, updates map[string]any) (*model.MemorySnapshot, error) {
	return uc.mutateSnapshot(ctx, threadID, userID, func(s *model.MemorySnapshot) {
		if ignored := s.Context.ApplyUpdates(updates); len(ignored) > 0 {
			logging.From(ctx).Warn("ignored unknown context keys",
				"threadID", threadID,
				"userID", userID,
				"keys", ignored,
			)
		}
	})
}

// SaveContext overwrites the thread's context wholesale. This is the
// eviction flush path.
func (uc *MemoryUseCase) SaveContext(ctx context.Context, threadID types.ThreadID, userID types.UserID, replace *model.MemoryContext) (*model.MemorySnapshot, error) {
	return uc.mutateSnapshot(ctx, threadID, userID, func(s *model.MemorySnapshot) {
		s.Context = replace.Clone()
	})
}

// DeleteUserMemories removes every persisted snapshot of the user and
// purges the matching cache entries. Returns the number removed from
// the repository.
func (uc *MemoryUseCase) DeleteUserMemories(ctx context.Context, userID types.UserID) (int, error) {
	count, err := uc.repo.Memory().DeleteByUser(ctx, userID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete user memories", goerr.V(UserIDKey, userID))
	}

	uc.cache.removeByUser(userID)
	return count, nil
}

// ClearCache drops cached snapshots: a single key when both IDs are
// given, one side's keys when only one is given, everything otherwise.
func (uc *MemoryUseCase) ClearCache(threadID types.ThreadID, userID types.UserID) {
	switch {
	case threadID != "" && userID != "":
		uc.cache.remove(threadID, userID)
	case userID != "":
		uc.cache.removeByUser(userID)
	case threadID != "":
		uc.cache.removeByThread(threadID)
	default:
		uc.cache.clear()
	}
}

// mutateSnapshot loads the current snapshot (creating a fresh one when
// absent), applies mutate, and saves. On a version conflict the stale
// cache entry is dropped and the whole load-mutate-save redoes from
// scratch, bounded by maxSaveAttempts. While draining, a failed save
// returns the unsaved snapshot best-effort.
func (uc *MemoryUseCase) mutateSnapshot(ctx context.Context, threadID types.ThreadID, userID types.UserID, mutate func(s *model.MemorySnapshot)) (*model.MemorySnapshot, error) {
	var current *model.MemorySnapshot

	saved, err := retryOnConflict(ctx, maxSaveAttempts, func(ctx context.Context) (*model.MemorySnapshot, error) {
		snapshot, err := uc.Load(ctx, threadID, userID)
		if err != nil {
			return nil, err
		}
		if snapshot == nil {
			snapshot = model.NewMemorySnapshot(threadID, userID)
		}

		mutate(snapshot)
		current = snapshot

		return uc.saveThrough(ctx, snapshot)
	})
	if err != nil {
		if uc.draining.Load() && errors.Is(err, ErrMemoryPersist) {
			logging.From(ctx).Warn("memory save suppressed while draining",
				"threadID", threadID,
				"userID", userID,
				"error", err,
			)
			return current, nil
		}
		return nil, err
	}

	return saved, nil
}

// saveThrough persists the snapshot and refreshes the cache. A version
// conflict invalidates the cache entry so the next load re-reads the
// repository; any other failure is classified as ErrMemoryPersist.
func (uc *MemoryUseCase) saveThrough(ctx context.Context, snapshot *model.MemorySnapshot) (*model.MemorySnapshot, error) {
	saved, err := uc.repo.Memory().Save(ctx, snapshot)
	if err != nil {
		if errors.Is(err, interfaces.ErrVersionConflict) {
			uc.cache.remove(snapshot.ThreadID, snapshot.UserID)
			return nil, err
		}
		return nil, goerr.Wrap(ErrMemoryPersist, "failed to save memory snapshot",
			goerr.V(ThreadIDKey, snapshot.ThreadID),
			goerr.V(UserIDKey, snapshot.UserID),
			goerr.V("cause", err.Error()),
		)
	}

	uc.cache.set(saved)
	return saved, nil
}

// retryOnConflict runs attempt until it succeeds, fails with something
// other than a version conflict, or the attempt budget is spent.
// Retries are immediate; the attempt re-reads fresh state itself.
// Exhaustion is classified as ErrMemoryPersist: the conflict is a
// repository-internal signal and stops here.
func retryOnConflict(ctx context.Context, attempts int, attempt func(ctx context.Context) (*model.MemorySnapshot, error)) (*model.MemorySnapshot, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		snapshot, err := attempt(ctx)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, interfaces.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}

	return nil, goerr.Wrap(ErrMemoryPersist, "save attempts exhausted by version conflicts",
		goerr.V("attempts", attempts),
		goerr.V("lastError", lastErr.Error()),
	)
}
