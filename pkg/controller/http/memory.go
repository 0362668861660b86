package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/errutil"
)

type memoryMessageResponse struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type fileRefResponse struct {
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	Size       int64     `json:"size"`
	AttachedAt time.Time `json:"attached_at"`
}

type memoryContextResponse struct {
	UploadedFiles     []fileRefResponse `json:"uploaded_files"`
	CurrentTopic      string            `json:"current_topic,omitempty"`
	LastAnalysisType  string            `json:"last_analysis_type,omitempty"`
	Preferences       map[string]any    `json:"preferences,omitempty"`
	SessionMetadata   map[string]any    `json:"session_metadata,omitempty"`
	SelectedDocuments []string          `json:"selected_documents"`
}

type memorySnapshotResponse struct {
	ThreadID  string                  `json:"thread_id"`
	UserID    string                  `json:"user_id"`
	Messages  []memoryMessageResponse `json:"messages"`
	Context   memoryContextResponse   `json:"context"`
	Version   int64                   `json:"version"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func toMemorySnapshotResponse(s *model.MemorySnapshot) memorySnapshotResponse {
	resp := memorySnapshotResponse{
		ThreadID:  s.ThreadID.String(),
		UserID:    s.UserID.String(),
		Messages:  make([]memoryMessageResponse, 0, len(s.Messages)),
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, msg := range s.Messages {
		resp.Messages = append(resp.Messages, memoryMessageResponse{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Metadata:  msg.Metadata,
		})
	}

	resp.Context = memoryContextResponse{
		UploadedFiles:     make([]fileRefResponse, 0, len(s.Context.UploadedFiles)),
		CurrentTopic:      s.Context.CurrentTopic,
		LastAnalysisType:  s.Context.LastAnalysisType,
		Preferences:       s.Context.Preferences,
		SessionMetadata:   s.Context.SessionMetadata,
		SelectedDocuments: make([]string, 0, len(s.Context.SelectedDocuments)),
	}
	for _, f := range s.Context.UploadedFiles {
		resp.Context.UploadedFiles = append(resp.Context.UploadedFiles, fileRefResponse{
			Filename:   f.Filename,
			FileType:   f.FileType,
			Size:       f.Size,
			AttachedAt: f.AttachedAt,
		})
	}
	for _, id := range s.Context.SelectedDocuments {
		resp.Context.SelectedDocuments = append(resp.Context.SelectedDocuments, id.String())
	}

	return resp
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := types.ThreadID(chi.URLParam(r, "threadID"))
	userID := userFromContext(ctx)

	snapshot, err := s.uc.Memory.Load(ctx, threadID, userID)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	if snapshot == nil {
		errutil.HandleHTTP(ctx, w, goerr.New("no memory for thread", goerr.V("thread_id", threadID)), http.StatusNotFound)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toMemorySnapshotResponse(snapshot))
}

func (s *Server) patchContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := types.ThreadID(chi.URLParam(r, "threadID"))
	userID := userFromContext(ctx)

	var updates map[string]any
	if err := decodeJSON(r, &updates); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}
	if len(updates) == 0 {
		errutil.HandleHTTP(ctx, w, goerr.New("no context updates given"), http.StatusBadRequest)
		return
	}

	snapshot, err := s.uc.Memory.UpdateContext(ctx, threadID, userID, updates)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, toMemorySnapshotResponse(snapshot))
}

func (s *Server) deleteUserMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deleted, err := s.uc.Memory.DeleteUserMemories(ctx, userFromContext(ctx))
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]int{"deleted": deleted})
}

type clearCacheRequest struct {
	ThreadID string `json:"thread_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// an empty body means a full cache flush
	var req clearCacheRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	s.uc.Memory.ClearCache(types.ThreadID(req.ThreadID), types.UserID(req.UserID))
	w.WriteHeader(http.StatusNoContent)
}
