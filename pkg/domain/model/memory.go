package model

import (
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

// MemoryMessage is a single conversation message held in a snapshot.
// Metadata carries opaque per-message annotations (response type,
// confidence, sources for AI messages).
type MemoryMessage struct {
	Role      types.MessageRole
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// MemorySnapshot is the persisted conversation state for one thread.
// One live snapshot exists per (ThreadID, UserID) pair. Version increases
// strictly with every successful write; the repository enforces this with
// a compare-and-set on save.
type MemorySnapshot struct {
	ID        types.SnapshotID
	ThreadID  types.ThreadID
	UserID    types.UserID
	Messages  []MemoryMessage
	Context   MemoryContext
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMemorySnapshot builds an unsaved snapshot for the given key.
// Version starts at 0; the first successful save stamps it to 1.
func NewMemorySnapshot(threadID types.ThreadID, userID types.UserID) *MemorySnapshot {
	now := time.Now().UTC()
	return &MemorySnapshot{
		ID:        types.NewSnapshotID(),
		ThreadID:  threadID,
		UserID:    userID,
		Messages:  []MemoryMessage{},
		Context:   NewMemoryContext(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the snapshot, dropping the oldest messages
// when the window exceeds maxMessages (FIFO trim from the head).
// maxMessages <= 0 means unbounded.
func (s *MemorySnapshot) Append(msg MemoryMessage, maxMessages int) {
	s.Messages = append(s.Messages, msg)
	if maxMessages > 0 && len(s.Messages) > maxMessages {
		trimmed := make([]MemoryMessage, maxMessages)
		copy(trimmed, s.Messages[len(s.Messages)-maxMessages:])
		s.Messages = trimmed
	}
}

// Clone returns a deep copy of the snapshot. The cache and the in-process
// repository hand out clones so callers can never mutate shared state.
func (s *MemorySnapshot) Clone() *MemorySnapshot {
	copied := &MemorySnapshot{
		ID:        s.ID,
		ThreadID:  s.ThreadID,
		UserID:    s.UserID,
		Context:   s.Context.Clone(),
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	copied.Messages = make([]MemoryMessage, len(s.Messages))
	for i, m := range s.Messages {
		copied.Messages[i] = MemoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Metadata:  copyAnyMap(m.Metadata),
		}
	}
	return copied
}

func copyAnyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
