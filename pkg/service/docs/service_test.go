package docs_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/memory"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/docs"
	"github.com/m-mizutani/gt"
)

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &fakeObjectWriter{storage: s, key: key}, nil
}

func (s *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeObjectWriter struct {
	bytes.Buffer
	storage *fakeStorage
	key     string
}

func (w *fakeObjectWriter) Close() error {
	w.storage.objects[w.key] = w.Buffer.Bytes()
	return nil
}

func TestGetDocumentsForThread(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	userID := types.UserID("user-1")
	stored := &model.Document{
		ID:               types.NewDocumentID(),
		UserID:           userID,
		FilePath:         "uploads/sales.csv",
		OriginalFilename: "sales.csv",
		FileType:         "csv",
		Size:             512,
	}
	_, err := repo.Document().Put(ctx, stored)
	gt.NoError(t, err).Required()

	svc := docs.New(repo)

	t.Run("resolves stored documents and skips missing IDs", func(t *testing.T) {
		resolved, err := svc.GetDocumentsForThread(ctx, userID, []types.DocumentID{
			stored.ID,
			types.NewDocumentID(),
		})
		gt.NoError(t, err).Required()

		gt.Array(t, resolved).Length(1)
		gt.Value(t, resolved[0].ID).Equal(stored.ID)
		gt.Value(t, resolved[0].OriginalFilename).Equal("sales.csv")
	})

	t.Run("empty selection resolves to empty list", func(t *testing.T) {
		resolved, err := svc.GetDocumentsForThread(ctx, userID, nil)
		gt.NoError(t, err).Required()
		gt.Array(t, resolved).Length(0)
	})
}

func TestStage(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	doc := &model.Document{
		ID:               types.NewDocumentID(),
		UserID:           "user-1",
		FilePath:         "uploads/report.csv",
		OriginalFilename: "report.csv",
		FileType:         "csv",
		Size:             42,
	}

	t.Run("copies the payload into the directory", func(t *testing.T) {
		storage := newFakeStorage()
		writer, err := storage.Put(ctx, doc.FilePath)
		gt.NoError(t, err).Required()
		_, err = writer.Write([]byte("date,revenue\n2026-07-01,1200\n"))
		gt.NoError(t, err).Required()
		gt.NoError(t, writer.Close()).Required()

		svc := docs.New(repo, docs.WithStorage(storage))

		dir := t.TempDir()
		localPath, err := svc.Stage(ctx, doc, filepath.Join(dir, "thread-1"))
		gt.NoError(t, err).Required()

		gt.Value(t, filepath.Base(localPath)).Equal("report.csv")
		data, err := os.ReadFile(localPath)
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal("date,revenue\n2026-07-01,1200\n")
	})

	t.Run("returns empty path without storage", func(t *testing.T) {
		svc := docs.New(repo)

		localPath, err := svc.Stage(ctx, doc, t.TempDir())
		gt.NoError(t, err).Required()
		gt.Value(t, localPath).Equal("")
	})

	t.Run("fails when the payload is missing", func(t *testing.T) {
		svc := docs.New(repo, docs.WithStorage(newFakeStorage()))

		_, err := svc.Stage(ctx, doc, t.TempDir())
		gt.Value(t, err).NotNil()
	})
}
