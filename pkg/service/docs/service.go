package docs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

// Service resolves document metadata for agent sessions and stages
// payloads into a session's working directory.
type Service interface {
	// GetDocumentsForThread resolves the selected document IDs into
	// metadata records. IDs that do not exist are skipped.
	GetDocumentsForThread(ctx context.Context, userID types.UserID, ids []types.DocumentID) ([]*model.Document, error)

	// Stage copies the document payload from storage into dir and
	// returns the local path. When no storage is configured the stage
	// step is skipped and an empty path is returned.
	Stage(ctx context.Context, doc *model.Document, dir string) (string, error)
}

type service struct {
	repo    interfaces.Repository
	storage Storage
}

var _ Service = &service{}

type Option func(*service)

// WithStorage attaches a payload storage. Without it documents are
// resolved as metadata only.
func WithStorage(st Storage) Option {
	return func(s *service) {
		s.storage = st
	}
}

func New(repo interfaces.Repository, opts ...Option) Service {
	s := &service{
		repo: repo,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) GetDocumentsForThread(ctx context.Context, userID types.UserID, ids []types.DocumentID) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}

	docs, err := s.repo.Document().ListByIDs(ctx, userID, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list documents", goerr.V("userID", userID))
	}

	if len(docs) < len(ids) {
		logging.From(ctx).Warn("some selected documents were not found",
			"userID", userID,
			"requested", len(ids),
			"found", len(docs),
		)
	}

	return docs, nil
}

func (s *service) Stage(ctx context.Context, doc *model.Document, dir string) (string, error) {
	if s.storage == nil {
		return "", nil
	}

	reader, err := s.storage.Get(ctx, doc.FilePath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open document payload",
			goerr.V("documentID", doc.ID),
			goerr.V("filePath", doc.FilePath),
		)
	}
	defer safe.Close(ctx, reader)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", goerr.Wrap(err, "failed to create staging directory", goerr.V("dir", dir))
	}

	localPath := filepath.Join(dir, doc.OriginalFilename)
	// #nosec G304 - localPath is derived from the session data directory
	file, err := os.Create(localPath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create staged file", goerr.V("path", localPath))
	}

	if _, err := io.Copy(file, reader); err != nil {
		safe.Close(ctx, file)
		return "", goerr.Wrap(err, "failed to copy document payload", goerr.V("path", localPath))
	}
	if err := file.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize staged file", goerr.V("path", localPath))
	}

	return localPath, nil
}
