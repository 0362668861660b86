package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Agent errors: creating or driving an agent session failed.
	// Always surfaced to the caller.
	ErrAgentSession = errors.New("agent session failure")

	// Persistence errors: a snapshot save failed outright or gave up
	// after exhausting conflict retries. Surfaced except while
	// draining, where flushes are best-effort.
	ErrMemoryPersist = errors.New("memory persistence failure")

	// Lifecycle errors
	ErrPoolClosed = errors.New("session pool is closed")
)

// Context keys for error values
const (
	ThreadIDKey = "thread_id"
	UserIDKey   = "user_id"
)
