// Package server assembles the HTTP router and middleware chain.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	"github.com/expensetrack/expensetrack/infrastructure/http/handler"
	"github.com/expensetrack/expensetrack/infrastructure/http/middleware"
	"github.com/expensetrack/expensetrack/infrastructure/http/response"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

type Config struct {
	Addr                 string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	CorrelationIDHeader  string
	EnableRequestLog     bool
	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	TrustedProxies       []*net.IPNet
}

type Dependencies struct {
	AuthUseCase      inbound.AuthUseCase
	ResetUseCase     inbound.PasswordResetUseCase
	RateLimitService inbound.RateLimitService
	RateLimits       []middleware.RateLimitPolicy
	Logger           logger.Logger
}

type Server struct {
	server *http.Server
	logger logger.Logger
}

// NewHandler builds the full request pipeline. Middleware that must see
// unmatched routes and preflight requests wraps the router from outside.
func NewHandler(cfg Config, deps Dependencies) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(deps.AuthUseCase, deps.Logger)
	authHandler := handler.NewAuthHandler(deps.AuthUseCase, deps.ResetUseCase, authMiddleware)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w)
	})

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, http.StatusOK, "healthy", nil)
	}).Methods(http.MethodGet)

	authHandler.RegisterRoutes(router)

	policies := deps.RateLimits
	if policies == nil {
		policies = middleware.DefaultRateLimitPolicies()
	}
	router.Use(middleware.NewRateLimitMiddleware(deps.RateLimitService, policies, deps.Logger).RateLimit)
	router.Use(authMiddleware.Authenticate)

	var h http.Handler = router
	if cfg.CORSEnabled {
		h = middleware.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials)(h)
	}
	if cfg.EnableRequestLog {
		h = middleware.RequestLogger(deps.Logger)(h)
	}
	h = middleware.RequestContext(cfg.CorrelationIDHeader, cfg.TrustedProxies)(h)
	h = middleware.Recovery(deps.Logger)(h)
	return h
}

func New(cfg Config, deps Dependencies) *Server {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(cfg, deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: deps.Logger,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting HTTP server", map[string]interface{}{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
