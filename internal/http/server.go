// Package http exposes the transaction store as a JSON API with a
// server-sent events stream of list snapshots.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"moneytrack/internal/core"
	applog "moneytrack/internal/log"
	"moneytrack/internal/middleware/ratelimit"
	"moneytrack/internal/middleware/security"
	"moneytrack/internal/middleware/trace"
	"moneytrack/internal/services"
)

// TransactionStore is the part of services.TransactionStore the API uses.
type TransactionStore interface {
	Load(ctx context.Context, page, limit int) ([]core.Transaction, error)
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Delete(ctx context.Context, id core.ID) error
	Transactions() []core.Transaction
	Totals() []core.CategoryTotal
	Status() services.Status
	ClearError()
	Subscribe() (<-chan []core.Transaction, func())
}

const (
	defaultHeartbeat = 25 * time.Second
	// maxBodyBytes leaves room for a base64 receipt photo.
	maxBodyBytes = 8 << 20
)

type Options struct {
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	Headers   *security.HeadersConfig
	// Heartbeat is the comment interval on idle event streams.
	Heartbeat time.Duration
}

// Server is an http.Server with the API routes and middleware installed.
type Server struct {
	http.Server

	store     TransactionStore
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	heartbeat time.Duration
	started   time.Time

	// streamsDone ends open event streams on Shutdown.
	streamsDone  chan struct{}
	shutdownOnce sync.Once
}

func NewServer(addr string, store TransactionStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	s := &Server{
		store:       store,
		logger:      logger,
		limiter:     ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		heartbeat:   heartbeat,
		started:     time.Now(),
		streamsDone: make(chan struct{}),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/current", s.handleCurrentTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("DELETE /api/status/error", s.handleClearError)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit, http.MethodPost, http.MethodDelete)

	var handler http.Handler = mux
	handler = limited(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown closes event streams, stops the limiter and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.streamsDone)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports the store's connectivity. Being offline is not a
// readiness failure: writes still land locally.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	st := s.store.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"online": st.Online,
		"remote": st.Remote,
	})
}
