package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/vendormemory"
	"github.com/dharter89/GAAP/internal/verification"
)

const (
	defaultMaxUploadBytes = 20 << 20
	multipartMemory       = 8 << 20
	requestIDHeader       = "X-Request-ID"
)

// Deps are the services the HTTP API drives.
type Deps struct {
	Audit   *audit.Service
	Ledger  *verification.Ledger
	Vendors *vendormemory.Memory
	// Model and Storage are reported by /api/health.
	Model          string
	Storage        string
	MaxUploadBytes int64
	Logger         *slog.Logger
	Now            func() time.Time
	NewID          func() string
}

// Server is the gaapcheck HTTP API.
type Server struct {
	bind      string
	deps      Deps
	logger    *slog.Logger
	documents *documentStore
	handler   http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds a server bound to bind. Audit, Ledger and Vendors are required.
func New(bind string, deps Deps) (*Server, error) {
	if deps.Audit == nil || deps.Ledger == nil || deps.Vendors == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "new server", "audit, ledger and vendor services are required", nil)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	s := &Server{
		bind:      strings.TrimSpace(bind),
		deps:      deps,
		logger:    logging.NewComponentLogger(deps.Logger, "api-server"),
		documents: newDocumentStore(deps.NewID),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/documents", s.handleUpload)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("POST /api/documents/{id}/audit", s.handleAudit)
	mux.HandleFunc("POST /api/documents/{id}/verify", s.handleVerify)
	mux.HandleFunc("GET /api/documents/{id}/grade", s.handleGrade)
	mux.HandleFunc("GET /api/documents/{id}/report.pdf", s.handleReportPDF)
	mux.HandleFunc("GET /api/documents/{id}/report.html", s.handleReportHTML)
	mux.HandleFunc("GET /api/vendors", s.handleListVendors)
	mux.HandleFunc("POST /api/vendors/resolve", s.handleResolveVendor)
	s.handler = s.withRequestID(mux)
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr reports the listening address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the bind address and serves until ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "listen", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Audits wait on the model, so writes get the LLM timeout plus slack.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() {
	s.mu.Lock()
	srv, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

// withRequestID tags each request with a correlation id, reusing the
// caller's X-Request-ID when present.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = s.deps.NewID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, s.logger)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := ErrorResponse{Error: message}
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		resp.RequestID = id
	}
	s.writeJSON(w, status, resp)
}

// writeFailure maps err onto a status code by its services marker.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := services.Kind(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.log(r.Context()), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, kind),
			logging.Error(err))
	}
	resp := ErrorResponse{Error: err.Error(), Kind: kind, Recoverable: services.Recoverable(err)}
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		resp.RequestID = id
	}
	s.writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrMalformedInput), errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrRemoteService):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrValidation, "api", "decode request", "invalid JSON body", err)
	}
	return nil
}

// persistenceWarning turns a storage failure into a response warning.
func (s *Server) persistenceWarning(ctx context.Context, what string, err error) string {
	logging.WarnWithContext(s.log(ctx), "change not persisted", "persistence_failed",
		logging.String("operation", what),
		logging.ErrorKind(err),
		logging.String(logging.FieldImpact, "change is kept in memory only"),
		logging.String(logging.FieldErrorHint, "check the state directory or database permissions"),
		logging.Error(err))
	return fmt.Sprintf("%s was applied but could not be saved; changes are not durable: %v", what, err)
}
