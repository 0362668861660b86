package memory

import (
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-process repository backend. It implements the same
// keying and versioning contract as the durable backends, so it serves
// both as the development backend and as the documented fallback when no
// durable store is reachable.
type Memory struct {
	snapshots *snapshotStore
	documents *documentStore
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		snapshots: newSnapshotStore(),
		documents: newDocumentStore(),
	}
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.snapshots
}

func (m *Memory) Document() interfaces.DocumentRepository {
	return m.documents
}

func (m *Memory) Close() error {
	return nil
}
