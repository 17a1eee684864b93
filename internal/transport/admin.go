package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultShutdownTimeout bounds the graceful stop of the admin server.
	DefaultShutdownTimeout = 30 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// HealthFunc reports service health. A nil error is healthy.
type HealthFunc func(ctx context.Context) error

// AdminServer serves /metrics and /healthz next to a junction service.
type AdminServer struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewAdminServer builds the admin router. gatherer defaults to the
// Prometheus default registry.
func NewAdminServer(gatherer prometheus.Gatherer, health HealthFunc, logger *slog.Logger) *AdminServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ok", http.StatusOK
		if health != nil {
			if err := health(req.Context()); err != nil {
				status, code = err.Error(), http.StatusServiceUnavailable
			}
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	return &AdminServer{
		httpServer: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *AdminServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *AdminServer) Serve(ctx context.Context, listener net.Listener) error {
	var wg sync.WaitGroup
	var serverErr error
	var errMutex sync.Mutex

	setServerError := func(err error) {
		errMutex.Lock()
		defer errMutex.Unlock()
		if serverErr == nil && err != nil {
			serverErr = err
		}
	}

	s.logger.Info("admin endpoint listening", "address", listener.Addr().String())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			setServerError(fmt.Errorf("admin server error: %w", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		setServerError(fmt.Errorf("admin server shutdown error: %w", err))
	}
	wg.Wait()

	errMutex.Lock()
	defer errMutex.Unlock()
	return serverErr
}

// Close stops the server immediately.
func (s *AdminServer) Close() error {
	if err := s.httpServer.Close(); err != nil {
		return fmt.Errorf("failed to close admin server: %w", err)
	}
	return nil
}
