package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Memory() MemoryRepository
	Document() DocumentRepository

	// Close releases the underlying client. Safe to call once after all
	// operations have completed.
	Close() error
}
