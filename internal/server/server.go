// Package server exposes the webhook endpoint and the job query API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
)

// EventHandler receives decoded webhook events
type EventHandler interface {
	Handle(ctx context.Context, eventType string, payload json.RawMessage) (jobs.Record, error)
}

// Server serves the HTTP API
type Server struct {
	config Config
	events EventHandler
	store  jobs.Store
	logger *slog.Logger

	router     *mux.Router
	httpServer *http.Server
}

// New creates a server and registers its routes
func New(config Config, events EventHandler, store jobs.Store, logger *slog.Logger) *Server {
	s := &Server{
		config: config,
		events: events,
		store:  store,
		logger: logger,
		router: mux.NewRouter(),
	}

	s.router.Use(requestLogger(logger))
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/status/{jobId}", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/processes", s.handleListProcesses).Methods(http.MethodGet)
	s.router.HandleFunc("/processes/{jobId}", s.handleGetProcess).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server listening", "address", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
