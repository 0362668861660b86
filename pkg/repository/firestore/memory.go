package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// memorySnapshotDoc is the Firestore document representation of
// model.MemorySnapshot. Version is the compare-and-set guard: Save only
// commits inside a transaction that re-reads it.
type memorySnapshotDoc struct {
	ID        types.SnapshotID   `firestore:"ID"`
	ThreadID  types.ThreadID     `firestore:"ThreadID"`
	UserID    types.UserID       `firestore:"UserID"`
	Messages  []memoryMessageDoc `firestore:"Messages"`
	Context   memoryContextDoc   `firestore:"Context"`
	Version   int64              `firestore:"Version"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	UpdatedAt time.Time          `firestore:"UpdatedAt"`
}

type memoryMessageDoc struct {
	Role      types.MessageRole `firestore:"Role"`
	Content   string            `firestore:"Content"`
	Timestamp time.Time         `firestore:"Timestamp"`
	Metadata  map[string]any    `firestore:"Metadata,omitempty"`
}

type fileRefDoc struct {
	Filename   string    `firestore:"Filename"`
	FileType   string    `firestore:"FileType"`
	Size       int64     `firestore:"Size"`
	AttachedAt time.Time `firestore:"AttachedAt"`
}

type memoryContextDoc struct {
	UploadedFiles     []fileRefDoc       `firestore:"UploadedFiles,omitempty"`
	CurrentTopic      string             `firestore:"CurrentTopic,omitempty"`
	LastAnalysisType  string             `firestore:"LastAnalysisType,omitempty"`
	Preferences       map[string]any     `firestore:"Preferences,omitempty"`
	SessionMetadata   map[string]any     `firestore:"SessionMetadata,omitempty"`
	SelectedDocuments []types.DocumentID `firestore:"SelectedDocuments,omitempty"`
}

func toMemorySnapshotDoc(s *model.MemorySnapshot) *memorySnapshotDoc {
	doc := &memorySnapshotDoc{
		ID:        s.ID,
		ThreadID:  s.ThreadID,
		UserID:    s.UserID,
		Messages:  make([]memoryMessageDoc, 0, len(s.Messages)),
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, msg := range s.Messages {
		doc.Messages = append(doc.Messages, memoryMessageDoc{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Metadata:  msg.Metadata,
		})
	}
	doc.Context = memoryContextDoc{
		CurrentTopic:      s.Context.CurrentTopic,
		LastAnalysisType:  s.Context.LastAnalysisType,
		Preferences:       s.Context.Preferences,
		SessionMetadata:   s.Context.SessionMetadata,
		SelectedDocuments: s.Context.SelectedDocuments,
	}
	for _, f := range s.Context.UploadedFiles {
		doc.Context.UploadedFiles = append(doc.Context.UploadedFiles, fileRefDoc{
			Filename:   f.Filename,
			FileType:   f.FileType,
			Size:       f.Size,
			AttachedAt: f.AttachedAt,
		})
	}
	return doc
}

func fromMemorySnapshotDoc(d *memorySnapshotDoc) *model.MemorySnapshot {
	s := &model.MemorySnapshot{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		UserID:    d.UserID,
		Messages:  make([]model.MemoryMessage, 0, len(d.Messages)),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, msg := range d.Messages {
		s.Messages = append(s.Messages, model.MemoryMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Metadata:  msg.Metadata,
		})
	}
	s.Context = model.MemoryContext{
		CurrentTopic:      d.Context.CurrentTopic,
		LastAnalysisType:  d.Context.LastAnalysisType,
		Preferences:       d.Context.Preferences,
		SessionMetadata:   d.Context.SessionMetadata,
		SelectedDocuments: d.Context.SelectedDocuments,
	}
	if s.Context.Preferences == nil {
		s.Context.Preferences = make(map[string]any)
	}
	if s.Context.SessionMetadata == nil {
		s.Context.SessionMetadata = make(map[string]any)
	}
	for _, f := range d.Context.UploadedFiles {
		s.Context.UploadedFiles = append(s.Context.UploadedFiles, model.FileRef{
			Filename:   f.Filename,
			FileType:   f.FileType,
			Size:       f.Size,
			AttachedAt: f.AttachedAt,
		})
	}
	return s
}

func docToMemorySnapshot(doc *firestore.DocumentSnapshot) (*model.MemorySnapshot, error) {
	var d memorySnapshotDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromMemorySnapshotDoc(&d), nil
}

type memoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newMemoryRepository(client *firestore.Client) *memoryRepository {
	return &memoryRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *memoryRepository) memoriesCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_memories"
	}
	return "memories"
}

func snapshotDocID(threadID types.ThreadID, userID types.UserID) string {
	return fmt.Sprintf("%s_%s", userID, threadID)
}

func (r *memoryRepository) Save(ctx context.Context, snapshot *model.MemorySnapshot) (*model.MemorySnapshot, error) {
	docRef := r.client.Collection(r.memoriesCollection()).Doc(snapshotDocID(snapshot.ThreadID, snapshot.UserID))

	var saved *model.MemorySnapshot
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var stored int64
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return goerr.Wrap(err, "failed to get memory snapshot")
			}
		} else {
			var d memorySnapshotDoc
			if err := doc.DataTo(&d); err != nil {
				return goerr.Wrap(err, "failed to unmarshal memory snapshot")
			}
			stored = d.Version
		}

		if stored != snapshot.Version {
			return goerr.Wrap(interfaces.ErrVersionConflict, "stored version does not match",
				goerr.V("threadID", snapshot.ThreadID),
				goerr.V("userID", snapshot.UserID),
				goerr.V("expected", snapshot.Version),
				goerr.V("stored", stored),
			)
		}

		saved = snapshot.Clone()
		saved.Version = snapshot.Version + 1
		saved.UpdatedAt = time.Now().UTC()

		return tx.Set(docRef, toMemorySnapshotDoc(saved))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save memory snapshot",
			goerr.V("threadID", snapshot.ThreadID),
			goerr.V("userID", snapshot.UserID),
		)
	}

	return saved, nil
}

func (r *memoryRepository) Get(ctx context.Context, threadID types.ThreadID, userID types.UserID) (*model.MemorySnapshot, error) {
	docRef := r.client.Collection(r.memoriesCollection()).Doc(snapshotDocID(threadID, userID))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get memory snapshot",
			goerr.V("threadID", threadID),
			goerr.V("userID", userID),
		)
	}

	snapshot, err := docToMemorySnapshot(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory snapshot",
			goerr.V("threadID", threadID),
			goerr.V("userID", userID),
		)
	}

	return snapshot, nil
}

func (r *memoryRepository) Delete(ctx context.Context, threadID types.ThreadID, userID types.UserID) (bool, error) {
	docRef := r.client.Collection(r.memoriesCollection()).Doc(snapshotDocID(threadID, userID))

	_, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get memory snapshot",
			goerr.V("threadID", threadID),
			goerr.V("userID", userID),
		)
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return false, goerr.Wrap(err, "failed to delete memory snapshot",
			goerr.V("threadID", threadID),
			goerr.V("userID", userID),
		)
	}

	return true, nil
}

func (r *memoryRepository) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	iter := r.client.Collection(r.memoriesCollection()).
		Where("UserID", "==", string(userID)).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, goerr.Wrap(err, "failed to iterate memory snapshots", goerr.V("userID", userID))
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete memory snapshot", goerr.V("userID", userID))
		}
		deleted++
	}

	return deleted, nil
}
