package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/usecase"
)

// Server is the thin REST surface over the session and memory usecases.
// Authentication happens upstream; the caller identity arrives in the
// X-Quokka-User header.
type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
}

type Options func(*Server)

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(callerIdentity)

		r.Route("/threads/{threadID}", func(r chi.Router) {
			r.Post("/messages", s.postMessage)
			r.Get("/memory", s.getMemory)
			r.Patch("/context", s.patchContext)
			r.Put("/documents", s.putDocuments)
			r.Delete("/session", s.deleteSession)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Delete("/sessions", s.deleteUserSessions)
			r.Delete("/memory", s.deleteUserMemory)
		})

		r.Post("/cache/clear", s.clearCache)
		r.Get("/sessions/stats", s.sessionStats)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
