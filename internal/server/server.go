package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"orderpipe/internal/config"
	"orderpipe/internal/interfaces"
)

// Server is the HTTP surface of one pipeline service. The producer and the
// consumer expose different route sets over the same middleware chain.
type Server struct {
	httpServer      *http.Server
	logger          *zerolog.Logger
	orderService    interfaces.OrderService
	processedReader interfaces.ProcessedOrderReader
	config          *config.Config
}

// NewProducer creates the producer HTTP server with the order management and
// sync lookup routes
func NewProducer(cfg *config.Config, service interfaces.OrderService, logger *zerolog.Logger) *Server {
	server := &Server{
		logger:       logger,
		orderService: service,
		config:       cfg,
	}
	server.httpServer = server.buildHTTPServer(server.producerRoutes())

	return server
}

// NewConsumer creates the consumer HTTP server with the processed-order sync
// lookup routes
func NewConsumer(cfg *config.Config, reader interfaces.ProcessedOrderReader, logger *zerolog.Logger) *Server {
	server := &Server{
		logger:          logger,
		processedReader: reader,
		config:          cfg,
	}
	server.httpServer = server.buildHTTPServer(server.consumerRoutes())

	return server
}

func (s *Server) buildHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         s.config.GetServerAddress(),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}

// producerRoutes configures the order management routes
func (s *Server) producerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", s.handleCreateOrder)
	mux.HandleFunc("GET /orders", s.handleListOrders)
	mux.HandleFunc("GET /orders/{order_number}", s.handleGetOrder)
	mux.HandleFunc("PATCH /orders/{order_number}/status", s.handleUpdateStatus)
	mux.HandleFunc("GET /sync/order/{order_number}", s.handleSyncOrder)
	mux.HandleFunc("GET /sync/health", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.wrap(mux)
}

// consumerRoutes configures the processed-order lookup routes
func (s *Server) consumerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /sync/processed-order/{order_number}", s.handleSyncProcessedOrder)
	mux.HandleFunc("GET /sync/health", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.wrap(mux)
}

func (s *Server) wrap(mux *http.ServeMux) http.Handler {
	handler := s.loggingMiddleware(mux)
	handler = s.timeoutMiddleware(handler)
	handler = s.recoveryMiddleware(handler)

	return handler
}

// loggingMiddleware adds request logging
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapper.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		},
	)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// timeoutMiddleware adds request timeout handling
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
			defer cancel()

			r = r.WithContext(ctx)

			done := make(chan struct{})

			go func() {
				defer close(done)
				next.ServeHTTP(w, r)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					http.Error(w, `{"error":"Request timeout"}`, http.StatusRequestTimeout)
				}
			}
		},
	)
}

// recoveryMiddleware handles panics and converts them to 500 errors
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					s.logger.Error().
						Interface("panic", err).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Panic recovered in HTTP handler")

					http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		},
	)
}
