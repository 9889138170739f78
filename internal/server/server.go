// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the citation pipeline over HTTP. POST /citations
// takes {"text": paragraph} with a bearer token and answers
// {"cited_text", "bibtex_entries"}.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// maxBodyBytes bounds request bodies well above the text limit.
const maxBodyBytes = 1 << 20

// Runner runs the pipeline for one paragraph.
type Runner interface {
	Run(ctx context.Context, paragraph string) (*pipeline.Outcome, error)
}

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	runner     Runner
	token      string
	maxLen     int
	metrics    *Metrics
	logger     *slog.Logger
}

// CitationRequest is the POST /citations body.
type CitationRequest struct {
	Text *string `json:"text"`
}

// CitationResponse is the POST /citations success body.
type CitationResponse struct {
	CitedText     string   `json:"cited_text"`
	BibTeXEntries []string `json:"bibtex_entries"`
}

// ErrorResponse is every error body. Phase is set when a pipeline phase
// failed; Service names the external service that caused it.
type ErrorResponse struct {
	Error   string `json:"error"`
	Phase   string `json:"phase,omitempty"`
	Service string `json:"service,omitempty"`
}

// New builds a server. An empty API token is refused so the service never
// runs unauthenticated. metrics and logger may be nil.
func New(cfg types.ServerConfig, runner Runner, metrics *Metrics, logger *slog.Logger) (*Server, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("server.api_token is not configured")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxLen := cfg.MaxTextLength
	if maxLen <= 0 {
		maxLen = 3000
	}
	s := &Server{
		router:  http.NewServeMux(),
		runner:  runner,
		token:   cfg.APIToken,
		maxLen:  maxLen,
		metrics: metrics,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  orDuration(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDuration(cfg.WriteTimeout, 10*time.Minute),
		IdleTimeout:  60 * time.Second,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /citations", s.handleDescribe)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", s.metrics.Handler())

	cite := s.authenticate(http.HandlerFunc(s.handleCitations))
	s.router.Handle("POST /citations", cite)
	s.router.Handle("POST /citations/{$}", cite)
}

// Handler returns the routed handler wrapped in recovery and request
// logging.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.logRequests(s.router))
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"description": "Academic Citation API",
		"endpoints": map[string]string{
			"/citations": "POST - Get citations for a text paragraph",
		},
	})
}

func (s *Server) handleDescribe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"description": "POST - Get citations for a text paragraph",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCitations(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	text, err := s.validateText(*req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.runner.Run(r.Context(), text)
	if out != nil {
		s.metrics.RunFinished(out.State)
	}
	if err != nil {
		s.writeRunError(w, out, err)
		return
	}

	entries := []string{}
	if out.Result != nil {
		entries = append(entries, out.Result.BibTeX()...)
	}
	cited := text
	if out.Result != nil {
		cited = out.Result.CitedText
	}
	writeJSON(w, http.StatusOK, CitationResponse{CitedText: cited, BibTeXEntries: entries})
}

// validateText enforces a single non-empty paragraph within the length
// limit and returns it trimmed.
func (s *Server) validateText(v string) (string, error) {
	if strings.ContainsAny(v, "\r\n") {
		return "", errors.New("text must be a single paragraph (no line breaks)")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("text cannot be empty")
	}
	if n := utf8.RuneCountInString(v); n > s.maxLen {
		return "", fmt.Errorf("text must not exceed %d characters (got %d)", s.maxLen, n)
	}
	return v, nil
}

func (s *Server) writeRunError(w http.ResponseWriter, out *pipeline.Outcome, err error) {
	resp := ErrorResponse{Error: err.Error(), Service: apierr.Service(err)}
	var perr *pipeline.PhaseError
	if errors.As(err, &perr) {
		resp.Phase = string(perr.Phase)
	}
	status := http.StatusInternalServerError
	switch {
	case apierr.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case apierr.IsExternal(err):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		// Client went away; the status is never read.
		status = http.StatusServiceUnavailable
	}
	attrs := []any{"error", err, "phase", resp.Phase, "service", resp.Service, "status", status}
	if out != nil {
		attrs = append(attrs, "run", out.RunID, "dir", out.Dir)
	}
	s.logger.Error("citation run failed", attrs...)
	writeJSON(w, status, resp)
}

// authenticate rejects requests without the configured bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid authentication token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.observeRequest(route, rw.statusCode)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rw.statusCode, "duration", time.Since(start))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func orDuration(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
