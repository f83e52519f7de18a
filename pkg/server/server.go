// Package server exposes the assistant over HTTP: a streaming chat
// endpoint plus small management endpoints for conversations and the
// semantic cache.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luigisaetta/oraculum/pkg/audit"
	"github.com/luigisaetta/oraculum/pkg/cache"
	"github.com/luigisaetta/oraculum/pkg/config"
	"github.com/luigisaetta/oraculum/pkg/conversation"
	"github.com/luigisaetta/oraculum/pkg/models"
	"github.com/luigisaetta/oraculum/pkg/router"
)

// Server is the oraculum HTTP frontend.
type Server struct {
	cfg     *config.Config
	router  *router.Router
	store   *conversation.Store
	cache   *cache.Cache
	auditor *audit.Logger
	mux     *http.ServeMux
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, rt *router.Router, store *conversation.Store, c *cache.Cache, a *audit.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		router:  rt,
		store:   store,
		cache:   c,
		auditor: a,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /streaming_chat", s.handleStreamingChat)
	s.mux.HandleFunc("DELETE /conversation/{id}", s.handleDeleteConversation)
	s.mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("GET /cache/failed", s.handleCacheFailed)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("oraculum listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// handleStreamingChat classifies the request, dispatches it and relays
// the answer chunk by chunk as plain text.
func (s *Server) handleStreamingChat(w http.ResponseWriter, r *http.Request) {
	reqStart := time.Now()

	var req models.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RequestText) == "" {
		writeJSONError(w, http.StatusBadRequest, "request_text is required")
		return
	}
	if req.ConvID == "" {
		req.ConvID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The current request is passed separately to the handlers, so the
	// history snapshot must be taken before it is appended.
	history := s.store.Get(req.ConvID)
	s.store.Append(req.ConvID, models.HumanMessage(req.RequestText))

	hitsBefore := s.cache.Stats().Hits

	stream, label, err := s.router.Route(r.Context(), req, history)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "routing failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Conv-ID", req.ConvID)
	w.Header().Set("X-Classification", string(label))
	w.WriteHeader(http.StatusOK)

	var answer strings.Builder
	for chunk := range stream {
		answer.WriteString(chunk)
		fmt.Fprint(w, chunk)
		flusher.Flush()
	}

	if answer.Len() > 0 {
		s.store.Append(req.ConvID, models.AIMessage(answer.String()))
	}

	s.auditor.LogAsync(models.AuditEntry{
		ConvID:         req.ConvID,
		RequestText:    req.RequestText,
		Classification: string(label),
		CacheHit:       s.cache.Stats().Hits > hitsBefore,
		StatusCode:     http.StatusOK,
		LatencyMs:      time.Since(reqStart).Milliseconds(),
	})
}

// handleDeleteConversation drops the history of one conversation.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Clear(id) {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("conversation %s deleted", id),
	})
}

// handleCacheStats reports the semantic cache counters and per-entry
// detail.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// handleCacheFailed lists the requests whose SQL generation failed.
func (s *Server) handleCacheFailed(w http.ResponseWriter, r *http.Request) {
	failed := s.cache.FailedRequests()
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"failed_requests": failed})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, code)
}
