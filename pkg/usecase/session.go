package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/docs"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSessionCapacity = 10
	defaultIdleTimeout     = 60 * time.Minute
)

// SessionHandle is one live agent bound to a thread. The per-handle
// mutex serializes turns; lastAccess (unix nanos) feeds LRU and idle
// eviction.
type SessionHandle struct {
	mu             sync.Mutex
	threadID       types.ThreadID
	userID         types.UserID
	agent          interfaces.AgentSession
	cfg            *model.AgentConfig
	workingContext *model.MemoryContext
	lastAccess     atomic.Int64
	retired        bool
}

// SessionUseCase is the pool of live agent sessions: one per thread,
// bounded by capacity, retired by LRU when full and by the sweeper
// when idle. Retiring a handle always flushes its working context
// before the agent is closed.
type SessionUseCase struct {
	memory      *MemoryUseCase
	agents      interfaces.AgentFactory
	docs        docs.Service
	baseDir     string
	model       string
	temperature float64
	capacity    int
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[types.ThreadID]*SessionHandle
	closed   bool
}

type SessionOption func(*SessionUseCase)

// WithSessionCapacity bounds the number of live sessions. Values below
// one are ignored.
func WithSessionCapacity(n int) SessionOption {
	return func(uc *SessionUseCase) {
		if n > 0 {
			uc.capacity = n
		}
	}
}

func WithIdleTimeout(d time.Duration) SessionOption {
	return func(uc *SessionUseCase) {
		if d > 0 {
			uc.idleTimeout = d
		}
	}
}

// WithDataDir sets the directory under which sessions stage document
// payloads, one subdirectory per thread.
func WithDataDir(dir string) SessionOption {
	return func(uc *SessionUseCase) {
		uc.baseDir = dir
	}
}

// WithAgentDefaults sets the model and temperature applied to new
// sessions. Zero values fall back to the built-in defaults.
func WithAgentDefaults(modelName string, temperature float64) SessionOption {
	return func(uc *SessionUseCase) {
		uc.model = modelName
		uc.temperature = temperature
	}
}

func NewSessionUseCase(memory *MemoryUseCase, agents interfaces.AgentFactory, docsSvc docs.Service, opts ...SessionOption) *SessionUseCase {
	uc := &SessionUseCase{
		memory:      memory,
		agents:      agents,
		docs:        docsSvc,
		capacity:    defaultSessionCapacity,
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
		sessions:    map[types.ThreadID]*SessionHandle{},
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// GetOrCreate returns the thread's live handle, building one when
// absent. forceReload retires an existing handle first so the session
// is rebuilt from persisted state. The whole check-evict-insert runs
// under the pool lock, so the capacity bound holds after every call
// and concurrent calls for one thread converge on a single handle.
func (uc *SessionUseCase) GetOrCreate(ctx context.Context, threadID types.ThreadID, userID types.UserID, selectedDocs []types.DocumentID, forceReload bool) (*SessionHandle, error) {
	if err := threadID.Validate(); err != nil {
		return nil, err
	}
	if err := userID.Validate(); err != nil {
		return nil, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed {
		return nil, goerr.Wrap(ErrPoolClosed, "cannot acquire agent session",
			goerr.V(ThreadIDKey, threadID),
			goerr.V(UserIDKey, userID),
		)
	}

	if sess, ok := uc.sessions[threadID]; ok {
		if sess.userID != userID {
			return nil, goerr.New("thread session is owned by another user",
				goerr.V(ThreadIDKey, threadID),
				goerr.V(UserIDKey, userID),
			)
		}

		if forceReload {
			uc.retireLocked(ctx, sess, "reload")
		} else {
			if selectedDocs != nil && !sess.selectionUnchanged(selectedDocs) {
				if err := uc.attachDocuments(ctx, sess, selectedDocs); err != nil {
					return nil, err
				}
			}
			sess.lastAccess.Store(uc.now().UnixNano())
			return sess, nil
		}
	}

	for len(uc.sessions) >= uc.capacity {
		if !uc.evictOldestLocked(ctx) {
			break
		}
	}

	sess, err := uc.createSession(ctx, threadID, userID, selectedDocs)
	if err != nil {
		return nil, err
	}

	uc.sessions[threadID] = sess
	logging.From(ctx).Info("agent session created",
		"threadID", threadID,
		"userID", userID,
		"active", len(uc.sessions),
	)
	return sess, nil
}

// ProcessMessage runs one conversation turn on the thread's session:
// the user message is persisted, the agent produces a reply, and the
// reply is persisted with its response metadata. A handle retired
// between acquisition and the turn is reacquired.
func (uc *SessionUseCase) ProcessMessage(ctx context.Context, threadID types.ThreadID, userID types.UserID, text string, selectedDocs []types.DocumentID, forceReload bool) (*model.AgentReply, error) {
	const retireRetries = 2

	for attempt := 0; ; attempt++ {
		sess, err := uc.GetOrCreate(ctx, threadID, userID, selectedDocs, forceReload)
		if err != nil {
			return nil, err
		}

		reply, retired, err := uc.runTurn(ctx, sess, text)
		if !retired {
			return reply, err
		}
		if attempt >= retireRetries {
			return nil, goerr.Wrap(ErrAgentSession, "session retired before the turn could run",
				goerr.V(ThreadIDKey, threadID),
				goerr.V(UserIDKey, userID),
			)
		}
	}
}

func (uc *SessionUseCase) runTurn(ctx context.Context, sess *SessionHandle, text string) (*model.AgentReply, bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.retired {
		return nil, true, nil
	}

	if _, err := uc.memory.AppendMessage(ctx, sess.threadID, sess.userID, types.MessageRoleHuman, text, nil); err != nil {
		return nil, false, err
	}

	reply, err := sess.agent.ProcessMessage(ctx, text)
	if err != nil {
		return nil, false, goerr.Wrap(ErrAgentSession, "agent failed to process message",
			goerr.V(ThreadIDKey, sess.threadID),
			goerr.V(UserIDKey, sess.userID),
			goerr.V("cause", err.Error()),
		)
	}

	if reply.Type != "" {
		sess.workingContext.LastAnalysisType = reply.Type
	}

	metadata := map[string]any{
		"response_type": reply.Type,
		"confidence":    reply.Confidence,
	}
	if len(reply.Sources) > 0 {
		metadata["sources"] = reply.Sources
	}

	if _, err := uc.memory.AppendMessage(ctx, sess.threadID, sess.userID, types.MessageRoleAI, reply.Answer, metadata); err != nil {
		return nil, false, err
	}

	sess.lastAccess.Store(uc.now().UnixNano())
	return reply, false, nil
}

// UpdateDocuments replaces the thread's document selection by
// rebuilding the session with the new set attached.
func (uc *SessionUseCase) UpdateDocuments(ctx context.Context, threadID types.ThreadID, userID types.UserID, ids []types.DocumentID) error {
	if ids == nil {
		ids = []types.DocumentID{}
	}

	_, err := uc.GetOrCreate(ctx, threadID, userID, ids, true)
	return err
}

// Remove retires the thread's session if present. Removing an absent
// session is a no-op; a handle owned by another user is left alone.
func (uc *SessionUseCase) Remove(ctx context.Context, threadID types.ThreadID, userID types.UserID) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed {
		return goerr.Wrap(ErrPoolClosed, "cannot remove agent session",
			goerr.V(ThreadIDKey, threadID),
			goerr.V(UserIDKey, userID),
		)
	}

	sess, ok := uc.sessions[threadID]
	if !ok {
		return nil
	}
	if sess.userID != userID {
		logging.From(ctx).Warn("refusing to remove session owned by another user",
			"threadID", threadID,
			"userID", userID,
		)
		return nil
	}

	uc.retireLocked(ctx, sess, "removed")
	return nil
}

// RemoveAllForUser retires every live session of the user and reports
// how many there were.
func (uc *SessionUseCase) RemoveAllForUser(ctx context.Context, userID types.UserID) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed {
		return 0, goerr.Wrap(ErrPoolClosed, "cannot remove user sessions", goerr.V(UserIDKey, userID))
	}

	removed := 0
	for _, sess := range uc.sessions {
		if sess.userID != userID {
			continue
		}
		uc.retireLocked(ctx, sess, "user removed")
		removed++
	}
	return removed, nil
}

// EvictIdle retires sessions whose last access is older than the idle
// timeout relative to now, and reports how many were retired. The
// sweeper calls this on an interval.
func (uc *SessionUseCase) EvictIdle(ctx context.Context, now time.Time) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed {
		return 0, goerr.Wrap(ErrPoolClosed, "cannot evict idle sessions")
	}

	deadline := now.Add(-uc.idleTimeout).UnixNano()
	var victims []*SessionHandle
	for _, sess := range uc.sessions {
		if sess.lastAccess.Load() < deadline {
			victims = append(victims, sess)
		}
	}

	for _, sess := range victims {
		uc.retireLocked(ctx, sess, "idle")
	}
	return len(victims), nil
}

// Stats reports current pool occupancy
func (uc *SessionUseCase) Stats() model.PoolStats {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	return model.PoolStats{
		ActiveSessions: len(uc.sessions),
		Capacity:       uc.capacity,
		IdleTimeout:    uc.idleTimeout,
	}
}

// Shutdown drains the pool: memory switches to best-effort saves,
// every handle is flushed and closed concurrently, and all later
// acquisitions fail with ErrPoolClosed. Shutdown always completes;
// flush failures are logged by the retire path.
func (uc *SessionUseCase) Shutdown(ctx context.Context) {
	uc.mu.Lock()
	if uc.closed {
		uc.mu.Unlock()
		return
	}
	uc.closed = true
	uc.memory.BeginDrain()

	victims := make([]*SessionHandle, 0, len(uc.sessions))
	for _, sess := range uc.sessions {
		victims = append(victims, sess)
	}
	uc.sessions = map[types.ThreadID]*SessionHandle{}
	uc.mu.Unlock()

	var eg errgroup.Group
	for _, sess := range victims {
		eg.Go(func() error {
			uc.flushAndClose(ctx, sess, "shutdown")
			return nil
		})
	}
	_ = eg.Wait()

	logging.From(ctx).Info("session pool closed", "flushed", len(victims))
}

func (uc *SessionUseCase) createSession(ctx context.Context, threadID types.ThreadID, userID types.UserID, selectedDocs []types.DocumentID) (*SessionHandle, error) {
	snapshot, err := uc.memory.CreateIfAbsent(ctx, threadID, userID, nil)
	if err != nil {
		return nil, err
	}

	ids := selectedDocs
	if ids == nil {
		ids = snapshot.Context.SelectedDocuments
	}

	cfg := &model.AgentConfig{
		ThreadID:          threadID,
		UserID:            userID,
		Model:             uc.model,
		Temperature:       uc.temperature,
		MemoryWindow:      uc.memory.maxMessages,
		SelectedDocuments: ids,
	}
	cfg.Normalize(uc.baseDir)

	agent, err := uc.agents.New(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(ErrAgentSession, "failed to create agent session",
			goerr.V(ThreadIDKey, threadID),
			goerr.V(UserIDKey, userID),
			goerr.V("cause", err.Error()),
		)
	}

	workingContext := snapshot.Context.Clone()
	sess := &SessionHandle{
		threadID:       threadID,
		userID:         userID,
		agent:          agent,
		cfg:            cfg,
		workingContext: &workingContext,
	}
	sess.lastAccess.Store(uc.now().UnixNano())

	agent.RestoreMemory(snapshot)

	if err := uc.attachDocuments(ctx, sess, ids); err != nil {
		if cerr := agent.Close(); cerr != nil {
			logging.From(ctx).Warn("failed to close agent session",
				"threadID", threadID,
				"userID", userID,
				"error", cerr,
			)
		}
		return nil, err
	}

	return sess, nil
}

// selectionUnchanged reports whether the handle already carries the
// requested document set, so an unchanged selection never restages
// payloads or disturbs the live agent.
func (sess *SessionHandle) selectionUnchanged(ids []types.DocumentID) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sameDocumentSet(sess.workingContext.SelectedDocuments, ids)
}

func sameDocumentSet(current, requested []types.DocumentID) bool {
	if len(current) != len(requested) {
		return false
	}
	seen := make(map[types.DocumentID]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

// attachDocuments resolves the selection against the user's library,
// stages payloads into the session's data directory, and hands them to
// the agent. A payload that cannot be staged is attached metadata-only;
// the session must survive partial context.
func (uc *SessionUseCase) attachDocuments(ctx context.Context, sess *SessionHandle, ids []types.DocumentID) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	documents, err := uc.docs.GetDocumentsForThread(ctx, sess.userID, ids)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve selected documents",
			goerr.V(ThreadIDKey, sess.threadID),
			goerr.V(UserIDKey, sess.userID),
		)
	}

	resolved := make([]types.DocumentID, 0, len(documents))
	for _, doc := range documents {
		localPath, err := uc.docs.Stage(ctx, doc, sess.cfg.DataDir)
		if err != nil {
			logging.From(ctx).Warn("failed to stage document payload",
				"documentID", doc.ID,
				"error", err,
			)
			localPath = ""
		}
		sess.agent.AttachDocument(doc, localPath)
		sess.workingContext.AttachFile(doc.FileRef())
		resolved = append(resolved, doc.ID)
	}
	sess.workingContext.SelectedDocuments = resolved

	return nil
}

// evictOldestLocked retires the handle with the smallest lastAccess.
// Callers hold the pool lock.
func (uc *SessionUseCase) evictOldestLocked(ctx context.Context) bool {
	var victim *SessionHandle
	for _, sess := range uc.sessions {
		if victim == nil || sess.lastAccess.Load() < victim.lastAccess.Load() {
			victim = sess
		}
	}
	if victim == nil {
		return false
	}

	uc.retireLocked(ctx, victim, "capacity")
	return true
}

// retireLocked removes the handle from the pool and flushes it.
// Callers hold the pool lock; taking the handle lock in flushAndClose
// waits out an in-flight turn.
func (uc *SessionUseCase) retireLocked(ctx context.Context, sess *SessionHandle, reason string) {
	delete(uc.sessions, sess.threadID)
	uc.flushAndClose(ctx, sess, reason)
}

// flushAndClose persists the handle's working context and closes the
// agent. Flush failures are logged, never returned: the handle is
// already out of the pool and message history is durable per turn.
func (uc *SessionUseCase) flushAndClose(ctx context.Context, sess *SessionHandle, reason string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.retired {
		return
	}
	sess.retired = true

	if _, err := uc.memory.SaveContext(ctx, sess.threadID, sess.userID, sess.workingContext); err != nil {
		logging.From(ctx).Warn("failed to flush session context",
			"threadID", sess.threadID,
			"userID", sess.userID,
			"error", err,
		)
	}
	if err := sess.agent.Close(); err != nil {
		logging.From(ctx).Warn("failed to close agent session",
			"threadID", sess.threadID,
			"userID", sess.userID,
			"error", err,
		)
	}

	logging.From(ctx).Info("agent session retired",
		"threadID", sess.threadID,
		"userID", sess.userID,
		"reason", reason,
	)
}
