package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ThreadID represents a unique identifier for a chat thread.
// Thread IDs are minted by the upstream chat surface, so no format is
// enforced beyond non-emptiness.
type ThreadID string

// Validate checks if the ThreadID is valid
func (t ThreadID) Validate() error {
	if t == "" {
		return goerr.New("thread ID cannot be empty")
	}
	return nil
}

// String returns the string representation of ThreadID
func (t ThreadID) String() string {
	return string(t)
}

// UserID represents a unique identifier for a user (the tenant key)
type UserID string

// Validate checks if the UserID is valid
func (u UserID) Validate() error {
	if u == "" {
		return goerr.New("user ID cannot be empty")
	}
	return nil
}

// String returns the string representation of UserID
func (u UserID) String() string {
	return string(u)
}

// SnapshotID is a UUID-based identifier for a memory snapshot
type SnapshotID string

// NewSnapshotID generates a new UUID v4 SnapshotID
func NewSnapshotID() SnapshotID {
	return SnapshotID(uuid.New().String())
}

// String returns the string representation of SnapshotID
func (s SnapshotID) String() string {
	return string(s)
}

// DocumentID represents a unique identifier for an uploaded document
type DocumentID string

// NewDocumentID generates a new UUID v4 DocumentID
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

// Validate checks if the DocumentID is valid
func (d DocumentID) Validate() error {
	if d == "" {
		return goerr.New("document ID cannot be empty")
	}
	return nil
}

// String returns the string representation of DocumentID
func (d DocumentID) String() string {
	return string(d)
}
