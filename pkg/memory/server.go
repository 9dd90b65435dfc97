package memory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/pi-llama/pkg/utils"
)

// ServiceName возвращается health-эндпоинтом.
const ServiceName = "memory-api"

// Server — HTTP API поверх Store.
//
//	GET    /                    health
//	POST   /memories            сохранить {content, category}
//	GET    /memories            список ?category=&limit=
//	GET    /memories/search     поиск ?q=&limit=
//	POST   /memories/search     поиск {query, limit}
//	DELETE /memories/{id}       удалить
type Server struct {
	store        *Store
	mux          *http.ServeMux
	searchLimit  int
	listLimit    int
	allowOrigins string
}

// ServerOption настраивает Server.
type ServerOption func(*Server)

// WithLimits задаёт лимиты по умолчанию для поиска и списка.
func WithLimits(search, list int) ServerOption {
	return func(s *Server) {
		if search > 0 {
			s.searchLimit = search
		}
		if list > 0 {
			s.listLimit = list
		}
	}
}

// NewServer создаёт HTTP сервер memory-api.
func NewServer(store *Store, opts ...ServerOption) *Server {
	s := &Server{
		store:        store,
		mux:          http.NewServeMux(),
		searchLimit:  DefaultSearchLimit,
		listLimit:    DefaultListLimit,
		allowOrigins: "*",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("POST /memories", s.handleCreate)
	s.mux.HandleFunc("GET /memories", s.handleList)
	s.mux.HandleFunc("GET /memories/search", s.handleSearchGet)
	s.mux.HandleFunc("POST /memories/search", s.handleSearchPost)
	s.mux.HandleFunc("DELETE /memories/{id}", s.handleDelete)

	return s
}

// ServeHTTP реализует http.Handler с CORS для браузерных клиентов.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.allowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	utils.Debug("memory-api request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", time.Since(start).Milliseconds())
}

// ListenAndServe запускает сервер на addr и останавливает его при отмене ctx.
//
// Rule 11: уважает context.Context.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("memory-api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		utils.Info("memory-api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type createRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Query   string  `json:"query"`
	Results []Match `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	mem, err := s.store.Save(r.Context(), req.Content, req.Category)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	// has_embedding всегда присутствует в ответе на создание.
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            mem.ID,
		"content":       mem.Content,
		"category":      mem.Category,
		"created_at":    mem.CreatedAt,
		"has_embedding": mem.HasEmbedding,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r.URL.Query().Get("limit"), s.listLimit)
	if !ok {
		return
	}

	memories, err := s.store.List(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memories)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeDetail(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}
	limit, ok := parseLimit(w, r.URL.Query().Get("limit"), s.searchLimit)
	if !ok {
		return
	}
	s.search(w, r, q, limit)
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeDetail(w, http.StatusBadRequest, "Field 'query' is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.searchLimit
	}
	s.search(w, r, req.Query, req.Limit)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, q string, limit int) {
	results, err := s.store.Search(r.Context(), q, limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if results == nil {
		results = []Match{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Results: results})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "id must be an integer")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Memory not found")
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrEmptyQuery):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		utils.Error("memory-api store error", "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func parseLimit(w http.ResponseWriter, raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Warn("memory-api write failed", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
