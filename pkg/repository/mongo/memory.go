package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// memorySnapshotDoc is the MongoDB document representation of
// model.MemorySnapshot. The version field is the compare-and-set guard:
// a new snapshot is inserted (duplicate key means someone else won), an
// existing one is replaced only when the filter still matches version.
type memorySnapshotDoc struct {
	Key        string             `bson:"_id"`
	SnapshotID string             `bson:"snapshot_id"`
	ThreadID   string             `bson:"thread_id"`
	UserID     string             `bson:"user_id"`
	Messages   []memoryMessageDoc `bson:"messages"`
	Context    memoryContextDoc   `bson:"context"`
	Version    int64              `bson:"version"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

type memoryMessageDoc struct {
	Role      string         `bson:"role"`
	Content   string         `bson:"content"`
	Timestamp time.Time      `bson:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
}

type fileRefDoc struct {
	Filename   string    `bson:"filename"`
	FileType   string    `bson:"file_type"`
	Size       int64     `bson:"size"`
	AttachedAt time.Time `bson:"attached_at"`
}

type memoryContextDoc struct {
	UploadedFiles     []fileRefDoc   `bson:"uploaded_files,omitempty"`
	CurrentTopic      string         `bson:"current_topic,omitempty"`
	LastAnalysisType  string         `bson:"last_analysis_type,omitempty"`
	Preferences       map[string]any `bson:"preferences,omitempty"`
	SessionMetadata   map[string]any `bson:"session_metadata,omitempty"`
	SelectedDocuments []string       `bson:"selected_documents,omitempty"`
}

func snapshotDocID(threadID types.ThreadID, userID types.UserID) string {
	return fmt.Sprintf("%s_%s", userID, threadID)
}

func toMemorySnapshotDoc(s *model.MemorySnapshot) *memorySnapshotDoc {
	doc := &memorySnapshotDoc{
		Key:        snapshotDocID(s.ThreadID, s.UserID),
		SnapshotID: string(s.ID),
		ThreadID:   string(s.ThreadID),
		UserID:     string(s.UserID),
		Messages:   make([]memoryMessageDoc, 0, len(s.Messages)),
		Version:    s.Version,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	for _, msg := range s.Messages {
		doc.Messages = append(doc.Messages, memoryMessageDoc{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Metadata:  msg.Metadata,
		})
	}
	doc.Context = memoryContextDoc{
		CurrentTopic:     s.Context.CurrentTopic,
		LastAnalysisType: s.Context.LastAnalysisType,
		Preferences:      s.Context.Preferences,
		SessionMetadata:  s.Context.SessionMetadata,
	}
	for _, id := range s.Context.SelectedDocuments {
		doc.Context.SelectedDocuments = append(doc.Context.SelectedDocuments, string(id))
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
		ID:        types.SnapshotID(d.SnapshotID),
		ThreadID:  types.ThreadID(d.ThreadID),
		UserID:    types.UserID(d.UserID),
		Messages:  make([]model.MemoryMessage, 0, len(d.Messages)),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, msg := range d.Messages {
		s.Messages = append(s.Messages, model.MemoryMessage{
			Role:      types.MessageRole(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Metadata:  msg.Metadata,
		})
	}
	s.Context = model.MemoryContext{
		CurrentTopic:     d.Context.CurrentTopic,
		LastAnalysisType: d.Context.LastAnalysisType,
		Preferences:      d.Context.Preferences,
		SessionMetadata:  d.Context.SessionMetadata,
	}
	if s.Context.Preferences == nil {
		s.Context.Preferences = make(map[string]any)
	}
	if s.Context.SessionMetadata == nil {
		s.Context.SessionMetadata = make(map[string]any)
	}
	for _, id := range d.Context.SelectedDocuments {
		s.Context.SelectedDocuments = append(s.Context.SelectedDocuments, types.DocumentID(id))
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

type memoryRepository struct {
	db *mongo.Database
}

func newMemoryRepository(db *mongo.Database) *memoryRepository {
	return &memoryRepository{db: db}
}

func (r *memoryRepository) memories() *mongo.Collection {
	return r.db.Collection(memoriesCollection)
}

func (r *memoryRepository) Save(ctx context.Context, snapshot *model.MemorySnapshot) (*model.MemorySnapshot, error) {
	saved := snapshot.Clone()
	saved.Version = snapshot.Version + 1
	saved.UpdatedAt = time.Now().UTC()
	doc := toMemorySnapshotDoc(saved)

	if snapshot.Version == 0 {
		if _, err := r.memories().InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, goerr.Wrap(interfaces.ErrVersionConflict, "snapshot already exists",
					goerr.V("threadID", snapshot.ThreadID),
					goerr.V("userID", snapshot.UserID),
					goerr.V("expected", snapshot.Version),
				)
			}
			return nil, goerr.Wrap(err, "failed to insert memory snapshot",
				goerr.V("threadID", snapshot.ThreadID),
				goerr.V("userID", snapshot.UserID),
			)
		}
		return saved, nil
	}

	result, err := r.memories().ReplaceOne(ctx,
		bson.M{"_id": doc.Key, "version": snapshot.Version},
		doc,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replace memory snapshot",
			goerr.V("threadID", snapshot.ThreadID),
			goerr.V("userID", snapshot.UserID),
		)
	}
	if result.MatchedCount == 0 {
		return nil, goerr.Wrap(interfaces.ErrVersionConflict, "stored version does not match",
			goerr.V("threadID", snapshot.ThreadID),
			goerr.V("userID", snapshot.UserID),
			goerr.V("expected", snapshot.Version),
		)
	}

	return saved, nil
}

func (r *memoryRepository) Get(ctx context.Context, threadID types.ThreadID, userID types.UserID) (*model.MemorySnapshot, error) {
	var doc memorySnapshotDoc
	err := r.memories().FindOne(ctx, bson.M{"_id": snapshotDocID(threadID, userID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get memory snapshot",
			goerr.V("threadID", threadID),
			goerr.V("userID", userID),
		)
	}

	return fromMemorySnapshotDoc(&doc), nil
}

func (r *memoryRepository) Delete(ctx context.Context, threadID types.ThreadID, userID types.UserID) (bool, error) {
	result, err := r.memories().DeleteOne(ctx, bson.M{"_id": snapshotDocID(threadID, userID)})
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete memory snapshot",
			goerr.V("threadID", threadID),
			goerr.V("userID", userID),
		)
	}

	return result.DeletedCount > 0, nil
}

func (r *memoryRepository) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	result, err := r.memories().DeleteMany(ctx, bson.M{"user_id": string(userID)})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete memory snapshots", goerr.V("userID", userID))
	}

	return int(result.DeletedCount), nil
}
