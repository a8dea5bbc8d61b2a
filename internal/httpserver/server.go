package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/L4Nci/verejne-zakazky/internal/config"
	"github.com/L4Nci/verejne-zakazky/internal/domain"
	"github.com/L4Nci/verejne-zakazky/internal/urlstate"
)

// Server is the HTTP server that serves the tender catalog API.
type Server struct {
	cfg        *config.Config
	svc        *domain.QueryService
	hub        *Hub
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server with the given query service. hub may
// be nil when live update push is disabled.
func NewServer(cfg *config.Config, svc *domain.QueryService, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		hub:    hub,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/tenders", s.handleListTenders)
	mux.HandleFunc("GET /api/v1/tenders/watch", s.handleWatch)
	mux.HandleFunc("GET /api/v1/tenders/{externalId}", s.handleGetTender)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured route table, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse struct {
	Data       []domain.Tender `json:"data"`
	NextCursor string          `json:"nextCursor,omitempty"`
	HasMore    bool            `json:"hasMore"`
	Total      *int            `json:"total,omitempty"`
}

func (s *Server) handleListTenders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters, sortSpec, err := urlstate.Decode(query)
	if err != nil {
		s.logger.Warn("invalid filter parameters", "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	limit := 0
	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	req := domain.PageRequest{
		Filters:   filters,
		Sort:      sortSpec,
		Cursor:    query.Get("cursor"),
		PageSize:  limit,
		WithTotal: query.Get("count") == "true",
	}

	page, err := s.svc.FetchPage(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "InvalidCursor", "cursor does not match the requested sort, restart from the first page")
			return
		}
		s.logger.Error("failed to list tenders", "cursor", req.Cursor, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list tenders")
		return
	}

	resp := listResponse{
		Data:       page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore(),
	}
	if page.TotalKnown {
		total := page.Total
		resp.Total = &total
	}
	if resp.Data == nil {
		resp.Data = []domain.Tender{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTender(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalId")

	t, err := s.svc.GetTender(r.Context(), externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("tender %s not found", externalID))
			return
		}
		s.logger.Error("failed to get tender", "external_id", externalID, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get tender")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "NotFound", "live updates are disabled")
		return
	}
	s.hub.Subscribe(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying connection for
// websocket upgrades.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
