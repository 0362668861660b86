package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/firestore"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/memory"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/mongo"
	"github.com/m-mizutani/gt"
)

func testKey(t *testing.T) (types.ThreadID, types.UserID) {
	t.Helper()
	suffix := time.Now().UnixNano()
	return types.ThreadID(fmt.Sprintf("thread-%d", suffix)), types.UserID(fmt.Sprintf("user-%d", suffix))
}

func runMemoryRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Save stamps version 1 on first write", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		snapshot := model.NewMemorySnapshot(threadID, userID)

		saved, err := repo.Memory().Save(ctx, snapshot)
		gt.NoError(t, err).Required()

		gt.Value(t, saved.Version).Equal(int64(1))
		gt.Value(t, saved.ThreadID).Equal(threadID)
		gt.Value(t, saved.UserID).Equal(userID)
		gt.Bool(t, saved.UpdatedAt.IsZero()).False()
	})

	t.Run("Save increments version on each write", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		snapshot := model.NewMemorySnapshot(threadID, userID)

		saved, err := repo.Memory().Save(ctx, snapshot)
		gt.NoError(t, err).Required()
		gt.Value(t, saved.Version).Equal(int64(1))

		saved.Append(model.MemoryMessage{
			Role:      types.MessageRoleHuman,
			Content:   "what changed since yesterday?",
			Timestamp: time.Now().UTC(),
		}, 0)
		saved, err = repo.Memory().Save(ctx, saved)
		gt.NoError(t, err).Required()
		gt.Value(t, saved.Version).Equal(int64(2))

		saved, err = repo.Memory().Save(ctx, saved)
		gt.NoError(t, err).Required()
		gt.Value(t, saved.Version).Equal(int64(3))
	})

	t.Run("Save rejects stale version", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		snapshot := model.NewMemorySnapshot(threadID, userID)

		saved, err := repo.Memory().Save(ctx, snapshot)
		gt.NoError(t, err).Required()

		// Advance the stored version past the stale copy.
		_, err = repo.Memory().Save(ctx, saved)
		gt.NoError(t, err).Required()

		stale := saved.Clone()
		stale.Version = 0
		_, err = repo.Memory().Save(ctx, stale)
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, interfaces.ErrVersionConflict)).True()

		stored, err := repo.Memory().Get(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Version).Equal(int64(2))
	})

	t.Run("Save rejects duplicate first write", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		_, err := repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
		gt.NoError(t, err).Required()

		_, err = repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, interfaces.ErrVersionConflict)).True()
	})

	t.Run("concurrent saves from the same base admit one winner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		saved, err := repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
		gt.NoError(t, err).Required()

		const writers = 4
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				attempt := saved.Clone()
				attempt.Append(model.MemoryMessage{
					Role:      types.MessageRoleAI,
					Content:   fmt.Sprintf("candidate-%d", n),
					Timestamp: time.Now().UTC(),
				}, 0)
				_, errs[n] = repo.Memory().Save(ctx, attempt)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			gt.Bool(t, errors.Is(err, interfaces.ErrVersionConflict)).True()
		}
		gt.Value(t, succeeded).Equal(1)

		stored, err := repo.Memory().Get(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Version).Equal(int64(2))
	})

	t.Run("Get returns nil for absent key", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		snapshot, err := repo.Memory().Get(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, snapshot).Nil()
	})

	t.Run("Get round-trips messages and context", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		snapshot := model.NewMemorySnapshot(threadID, userID)
		snapshot.Append(model.MemoryMessage{
			Role:      types.MessageRoleHuman,
			Content:   "show me the revenue trend",
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			Metadata:  map[string]any{"client": "web"},
		}, 0)
		snapshot.Append(model.MemoryMessage{
			Role:      types.MessageRoleAI,
			Content:   "revenue grew 12% quarter over quarter",
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		}, 0)
		snapshot.Context.CurrentTopic = "revenue"
		snapshot.Context.LastAnalysisType = "trend"
		snapshot.Context.Preferences["chart"] = "line"
		snapshot.Context.SelectedDocuments = []types.DocumentID{"doc-1", "doc-2"}
		snapshot.Context.AttachFile(model.FileRef{
			Filename:   "q2-report.csv",
			FileType:   "csv",
			Size:       2048,
			AttachedAt: time.Now().UTC().Truncate(time.Millisecond),
		})

		_, err := repo.Memory().Save(ctx, snapshot)
		gt.NoError(t, err).Required()

		retrieved, err := repo.Memory().Get(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved).NotNil()

		gt.Array(t, retrieved.Messages).Length(2)
		gt.Value(t, retrieved.Messages[0].Role).Equal(types.MessageRoleHuman)
		gt.Value(t, retrieved.Messages[0].Content).Equal("show me the revenue trend")
		gt.Value(t, retrieved.Messages[1].Role).Equal(types.MessageRoleAI)
		gt.Value(t, retrieved.Context.CurrentTopic).Equal("revenue")
		gt.Value(t, retrieved.Context.LastAnalysisType).Equal("trend")
		gt.Array(t, retrieved.Context.SelectedDocuments).Length(2)
		gt.Value(t, retrieved.Context.SelectedDocuments[0]).Equal(types.DocumentID("doc-1"))
		gt.Array(t, retrieved.Context.UploadedFiles).Length(1)
		gt.Value(t, retrieved.Context.UploadedFiles[0].Filename).Equal("q2-report.csv")
		gt.Value(t, retrieved.Context.UploadedFiles[0].Size).Equal(int64(2048))
	})

	t.Run("stored snapshot is isolated from caller mutation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		snapshot := model.NewMemorySnapshot(threadID, userID)
		snapshot.Context.Preferences["lang"] = "en"

		saved, err := repo.Memory().Save(ctx, snapshot)
		gt.NoError(t, err).Required()

		saved.Append(model.MemoryMessage{
			Role:    types.MessageRoleHuman,
			Content: "mutated after save",
		}, 0)
		saved.Context.Preferences["lang"] = "ja"

		stored, err := repo.Memory().Get(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Array(t, stored.Messages).Length(0)
		gt.Value(t, stored.Context.Preferences["lang"]).Equal("en")
	})

	t.Run("Delete removes the snapshot", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		_, err := repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
		gt.NoError(t, err).Required()

		deleted, err := repo.Memory().Delete(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).True()

		snapshot, err := repo.Memory().Get(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, snapshot).Nil()
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		deleted, err := repo.Memory().Delete(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).False()
	})

	t.Run("Delete resets the version sequence", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		threadID, userID := testKey(t)
		saved, err := repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
		gt.NoError(t, err).Required()
		_, err = repo.Memory().Save(ctx, saved)
		gt.NoError(t, err).Required()

		deleted, err := repo.Memory().Delete(ctx, threadID, userID)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).True()

		saved, err = repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
		gt.NoError(t, err).Required()
		gt.Value(t, saved.Version).Equal(int64(1))
	})

	t.Run("DeleteByUser removes only that user's snapshots", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		suffix := time.Now().UnixNano()
		userID := types.UserID(fmt.Sprintf("user-%d", suffix))
		otherID := types.UserID(fmt.Sprintf("other-%d", suffix))

		for i := 0; i < 3; i++ {
			threadID := types.ThreadID(fmt.Sprintf("thread-%d-%d", suffix, i))
			_, err := repo.Memory().Save(ctx, model.NewMemorySnapshot(threadID, userID))
			gt.NoError(t, err).Required()
		}
		otherThread := types.ThreadID(fmt.Sprintf("thread-%d-other", suffix))
		_, err := repo.Memory().Save(ctx, model.NewMemorySnapshot(otherThread, otherID))
		gt.NoError(t, err).Required()

		count, err := repo.Memory().DeleteByUser(ctx, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(3)

		kept, err := repo.Memory().Get(ctx, otherThread, otherID)
		gt.NoError(t, err).Required()
		gt.Value(t, kept).NotNil()

		count, err = repo.Memory().DeleteByUser(ctx, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(0)
	})
}

func newFirestoreMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newMongoMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	database := os.Getenv("TEST_MONGO_DATABASE")
	if database == "" {
		database = "quokka_test"
	}

	ctx := context.Background()
	repo, err := mongo.New(ctx, uri, database)
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.EnsureIndexes(ctx)).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func TestMemoryMemoryRepository(t *testing.T) {
	runMemoryRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreMemoryRepository(t *testing.T) {
	runMemoryRepositoryTest(t, newFirestoreMemoryRepository)
}

func TestMongoMemoryRepository(t *testing.T) {
	runMemoryRepositoryTest(t, newMongoMemoryRepository)
}
