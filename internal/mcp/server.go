// File: internal/mcp/server.go
package mcp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// Server hosts the tool bridge: the command endpoint, health and metrics,
// and the interaction WebSocket.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	httpServer *http.Server
	handlers   *Handlers
	toolbox    *Toolbox
	limiter    *rate.Limiter

	// onShutdown runs after the HTTP server has stopped.
	onShutdown []func(ctx context.Context)
}

// NewServer builds a server around toolbox. Nothing listens until Start.
func NewServer(cfg config.ServerConfig, toolbox *Toolbox, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp_server")

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: NewHandlers(logger, toolbox),
		toolbox:  toolbox,
		limiter:  limiter,
	}
}

// OnShutdown registers cleanup to run during graceful shutdown, in order.
func (s *Server) OnShutdown(fn func(ctx context.Context)) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Router assembles the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer) // Catches panics
	r.Use(s.corsMiddleware)

	// WebSocket routes are long-lived and sit outside the request timeout.
	r.Get("/ws/v1/interact", s.handleInteract())

	r.Group(func(r chi.Router) {
		timeout := s.cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		r.Use(middleware.Timeout(timeout))
		r.Use(s.rateLimitMiddleware)
		s.handlers.RegisterRoutes(r)
	})
	return r
}

// Start runs the server until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	// Ensure logs are flushed when the server stops.
	defer observability.Sync()

	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigint)

		select {
		case <-sigint:
			s.logger.Info("Received shutdown signal, shutting down gracefully...")
		case <-ctx.Done():
			s.logger.Info("Context cancelled, shutting down gracefully...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		for _, fn := range s.onShutdown {
			fn(shutdownCtx)
		}
		close(idleConnsClosed)
	}()

	s.logger.Info("Tool bridge starting", zap.String("address", s.cfg.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
		return err
	}

	<-idleConnsClosed
	s.logger.Info("Tool bridge stopped.")
	return nil
}

// rateLimitMiddleware applies the process-wide request budget.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.handlers.respond(w, http.StatusTooManyRequests, CommandResponse{
				Status:    StatusError,
				Error:     "rate limit exceeded",
				Hint:      "Retry after a short pause.",
				ErrorKind: KindRateLimited,
				Retryable: true,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed checks an Origin header against the configured list.
// An empty list allows same-origin requests only; "*" allows all.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// corsMiddleware answers preflights and sets CORS headers for allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
