package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/autograder.net/internal/adapter/websocket/hub"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/services/submission"
	"gitlab.com/autograder.net/internal/handlers"
	"gitlab.com/autograder.net/internal/handlers/runtimes"
	"gitlab.com/autograder.net/internal/handlers/submissions"
	"gitlab.com/autograder.net/internal/handlers/ws"
)

const shutdownTimeout = 10 * time.Second

type ServiceProvider struct {
	submissionService submission.ISubmissionService
	hub               *hub.Hub
	middleware        *handlers.MiddlewareProvider
	healthChecks      map[string]handlers.HealthCheck
}

func NewServiceProvider(
	submissionService submission.ISubmissionService,
	wsHub *hub.Hub,
	middleware *handlers.MiddlewareProvider,
	healthChecks map[string]handlers.HealthCheck,
) *ServiceProvider {
	return &ServiceProvider{
		submissionService: submissionService,
		hub:               wsHub,
		middleware:        middleware,
		healthChecks:      healthChecks,
	}
}

type Server struct {
	router          *mux.Router
	srv             *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	if s.ServiceProvider.submissionService == nil {
		return errors.New("submission service is required")
	}
	r := mux.NewRouter()
	handlers.NewHealthHandler(s.ServiceProvider.healthChecks, s.logger).RegisterRoutes(r)

	protected := r.NewRoute().Subrouter()
	protected.Use(s.ServiceProvider.middleware.JWTMiddleware)
	submissions.NewSubmissionHandler(s.ServiceProvider.submissionService, s.logger).RegisterRoutes(protected)
	runtimes.NewRuntimeHandler(s.ServiceProvider.submissionService, s.logger).RegisterRoutes(protected)
	if s.ServiceProvider.hub != nil {
		ws.NewSubmissionSocketHandler(s.ServiceProvider.hub, s.ServiceProvider.submissionService, s.logger).RegisterRoutes(protected)
	}

	s.router = r
	return nil
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background; a listen failure is reported on the returned channel
func (s *Server) Start(ctx context.Context) <-chan error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("Server listening", "addr", s.srv.Addr, "service", s.ServiceName)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
			errCh <- err
		}
	}()
	return errCh
}

func (s *Server) Stop() {
	s.logger.Info("Shutting down http server...")
	if s.ServiceProvider.hub != nil {
		s.ServiceProvider.hub.Close()
	}
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down http server", "error", err)
	}
}
