package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/errutil"
)

type postMessageRequest struct {
	Message     string   `json:"message"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	ForceReload bool     `json:"force_reload,omitempty"`
}

type agentReplyResponse struct {
	Answer        string         `json:"answer"`
	Type          string         `json:"response_type"`
	Confidence    float64        `json:"confidence"`
	Sources       []string       `json:"sources,omitempty"`
	Visualization map[string]any `json:"visualization,omitempty"`
}

type postMessageResponse struct {
	ThreadID string             `json:"thread_id"`
	Reply    agentReplyResponse `json:"reply"`
}

func toAgentReplyResponse(reply *model.AgentReply) agentReplyResponse {
	return agentReplyResponse{
		Answer:        reply.Answer,
		Type:          reply.Type,
		Confidence:    reply.Confidence,
		Sources:       reply.Sources,
		Visualization: reply.Visualization,
	}
}

func toDocumentIDs(raw []string) []types.DocumentID {
	if raw == nil {
		return nil
	}
	ids := make([]types.DocumentID, len(raw))
	for i, s := range raw {
		ids[i] = types.DocumentID(s)
	}
	return ids
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.uc.Session == nil {
		http.Error(w, "agent features are not configured", http.StatusServiceUnavailable)
		return
	}

	threadID := types.ThreadID(chi.URLParam(r, "threadID"))
	userID := userFromContext(ctx)

	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("message is required"), http.StatusBadRequest)
		return
	}

	reply, err := s.uc.Session.ProcessMessage(ctx, threadID, userID, req.Message, toDocumentIDs(req.DocumentIDs), req.ForceReload)
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, postMessageResponse{
		ThreadID: threadID.String(),
		Reply:    toAgentReplyResponse(reply),
	})
}

type putDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) putDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.uc.Session == nil {
		http.Error(w, "agent features are not configured", http.StatusServiceUnavailable)
		return
	}

	threadID := types.ThreadID(chi.URLParam(r, "threadID"))
	userID := userFromContext(ctx)

	var req putDocumentsRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	if err := s.uc.Session.UpdateDocuments(ctx, threadID, userID, toDocumentIDs(req.DocumentIDs)); err != nil {
		handleError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.uc.Session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	threadID := types.ThreadID(chi.URLParam(r, "threadID"))
	userID := userFromContext(ctx)

	if err := s.uc.Session.Remove(ctx, threadID, userID); err != nil {
		handleError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteUserSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.uc.Session == nil {
		respondJSON(ctx, w, http.StatusOK, map[string]int{"removed": 0})
		return
	}

	removed, err := s.uc.Session.RemoveAllForUser(ctx, userFromContext(ctx))
	if err != nil {
		handleError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]int{"removed": removed})
}

type sessionStatsResponse struct {
	ActiveSessions     int `json:"active_sessions"`
	Capacity           int `json:"capacity"`
	IdleTimeoutMinutes int `json:"idle_timeout_minutes"`
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.uc.Session == nil {
		http.Error(w, "agent features are not configured", http.StatusServiceUnavailable)
		return
	}

	stats := s.uc.Session.Stats()
	respondJSON(ctx, w, http.StatusOK, sessionStatsResponse{
		ActiveSessions:     stats.ActiveSessions,
		Capacity:           stats.Capacity,
		IdleTimeoutMinutes: int(stats.IdleTimeout.Minutes()),
	})
}
