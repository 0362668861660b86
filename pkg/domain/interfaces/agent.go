package interfaces

import (
	"context"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
)

// AgentFactory builds one conversational agent session per thread.
// Implementations wrap the LLM runtime; the session pool only sees
// this interface.
type AgentFactory interface {
	New(ctx context.Context, cfg *model.AgentConfig) (AgentSession, error)
}

// AgentSession is a live agent bound to a single thread. Implementations
// are not required to be goroutine safe; the session pool serializes
// access per thread.
type AgentSession interface {
	// ProcessMessage sends one user message and returns the structured reply
	ProcessMessage(ctx context.Context, text string) (*model.AgentReply, error)

	// AttachDocument adds document context for subsequent messages.
	// localPath points at the staged payload and may be empty when the
	// payload was not staged.
	AttachDocument(doc *model.Document, localPath string)

	// RestoreMemory primes the session with a previously persisted snapshot
	RestoreMemory(snapshot *model.MemorySnapshot)

	// Close releases the session. Safe to call on a session that never
	// processed a message.
	Close() error
}
