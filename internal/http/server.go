package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/middleware/ratelimit"
	"finance/internal/middleware/security"
	"finance/internal/middleware/trace"
	"finance/internal/services"
)

// MonthService is the facade the handlers call.
type MonthService interface {
	MonthsList(ctx context.Context) ([]services.MonthListItem, error)
	MonthsGet(ctx context.Context, ref services.MonthRef) (*services.MonthView, error)
	MonthsUpsert(ctx context.Context, req services.UpsertRequest) (services.UpsertResponse, error)
	MonthsCopyFromPrevious(ctx context.Context, ref services.MonthRef) (services.CopyResponse, error)
	MonthsDelete(ctx context.Context, ref services.MonthRef) (services.DeleteResponse, error)
	MonthsSummary(ctx context.Context, ref services.MonthRef) (*core.Breakdown, error)
}

var _ MonthService = (*services.MonthService)(nil)

// Options tune the server; zero values are usable.
type Options struct {
	Logger *applog.Logger
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
	// WritesPerMinute bounds mutating requests per client; 0 uses the default.
	WritesPerMinute int
}

type Server struct {
	http.Server
	months  MonthService
	ready   func(ctx context.Context) error
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, months MonthService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	ips := security.NewClientIPExtractor()
	s := &Server{
		months:  months,
		ready:   opts.Ready,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WritesPerMinute}),
		tracer:  trace.NewMiddleware(ips.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/months", s.handleListMonths)
	mux.HandleFunc("GET /api/months/{year}/{month}", s.handleGetMonth)
	mux.HandleFunc("PUT /api/months/{year}/{month}", s.handleUpsertMonth)
	mux.HandleFunc("DELETE /api/months/{year}/{month}", s.handleDeleteMonth)
	mux.HandleFunc("POST /api/months/{year}/{month}/copy-previous", s.handleCopyFromPrevious)
	mux.HandleFunc("GET /api/months/{year}/{month}/summary", s.handleMonthSummary)

	var handler http.Handler = mux
	handler = s.limiter.WritesMiddleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})(handler)
	handler = applog.RequestIDMiddleware(trace.GetRequestID)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown stops the limiter and drains the server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe treats a graceful shutdown as success.
func (s *Server) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
