package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/shyim/hellokube/internal/accesslog"
	"github.com/shyim/hellokube/internal/config"
	"github.com/shyim/hellokube/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	port     int
	greeting string
	router   *mux.Router
	metrics  *metrics.Collector
	recorder accesslog.Recorder
}

type Option func(*Server)

func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = collector
	}
}

func WithRecorder(recorder accesslog.Recorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

func New(cfg *config.ServerConfig, greeting string, opts ...Option) *Server {
	s := &Server{
		port:     cfg.Port,
		greeting: greeting,
	}

	for _, opt := range opts {
		opt(s)
	}

	// "//" or "/./" must not be redirected to "/".
	s.router = mux.NewRouter().SkipClean(true)
	s.router.HandleFunc("/", s.handleGreeting).Methods(http.MethodGet, http.MethodHead)

	// Unmatched methods are treated like unknown paths.
	s.router.NotFoundHandler = http.NotFoundHandler()
	s.router.MethodNotAllowedHandler = http.NotFoundHandler()

	return s
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.greeting))
}

// Handler is the router wrapped with all middlewares. They sit outside the router so unmatched routes pass through them too.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router

	if s.metrics != nil {
		handler = s.metrics.Instrument(handler)
	}

	if s.recorder != nil {
		handler = recordAccess(s.recorder)(handler)
	}

	return logRequests(handler)
}

func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))

	if err != nil {
		return nil, fmt.Errorf("cannot listen on port %d: %w", s.port, err)
	}

	return ln, nil
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	if s.metrics != nil {
		s.metrics.MarkReady()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	if s.metrics != nil {
		s.metrics.MarkNotReady()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Infof("Shutting down server on port %d", s.port)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shut down server: %w", err)
	}

	return nil
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()

	if err != nil {
		return err
	}

	log.Infof("Server running on port %d", s.port)

	return s.Serve(ctx, ln)
}
