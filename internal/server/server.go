// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built here and handed
// down, so handlers never see the database and services never see HTTP.
//
//	config → sqlite.DB → services → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/zamanix/dailycoins/internal/auth"
	"github.com/zamanix/dailycoins/internal/config"
	"github.com/zamanix/dailycoins/internal/handler"
	"github.com/zamanix/dailycoins/internal/middleware"
	sqliteRepo "github.com/zamanix/dailycoins/internal/repository/sqlite"
	"github.com/zamanix/dailycoins/internal/reward"
	"github.com/zamanix/dailycoins/internal/service"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database and the optional Redis client and closes
// both when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client
}

// New opens the database, provisions the operator account if one is
// configured and wires every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so an unreachable Redis only costs throttling.
			logger.Warn("redis unreachable, login throttling will let requests through",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.setupRoutes(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                         → liveness + database ping
// POST   /api/users/register              → create account        (throttled)
// POST   /api/users/login                 → login + daily reward  (throttled)
// GET    /api/users/profile               → own profile + events  (bearer)
// PUT    /api/users/profile               → edit own profile      (bearer)
// GET    /api/users/events                → list own events       (bearer)
// POST   /api/users/events                → add event             (bearer)
// DELETE /api/users/events/{eventID}      → delete own event      (bearer)
// GET    /api/users/admin/users           → list accounts         (bearer, operator)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, so the logger can print it
// 2. RealIP, so the rate limiter keys on the client and not the proxy
// 3. Logger
// 4. Recoverer turns panics into 500s
// 5. CORS answers preflight requests before auth runs
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	policy := reward.Policy{SameDay: reward.SameDayNone}
	if s.config.SameDayGrant {
		policy.SameDay = reward.SameDayGrant
	}

	// s.db implements both repository.UserRepository and
	// repository.EventRepository.
	accounts := service.NewAccountService(s.db, tokens, passwords, policy, s.logger)
	profiles := service.NewProfileService(s.db, s.db, tokens, passwords, s.logger)
	events := service.NewEventService(s.db, s.logger)
	admin := service.NewAdminService(s.db, passwords, s.logger)

	if s.config.AdminConfigured() {
		if _, err := admin.Provision(ctx, s.config.AdminEmail, s.config.AdminPassword, s.config.AdminName); err != nil {
			return fmt.Errorf("provisioning operator account: %w", err)
		}
	}

	accountHandler := handler.NewAccountHandler(accounts, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, s.logger)
	eventHandler := handler.NewEventHandler(events, s.logger)
	adminHandler := handler.NewAdminHandler(admin, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	throttle := func(string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler { return next }
	}
	if s.redis != nil {
		limiter := middleware.NewRateLimiter(middleware.NewRedisCounter(s.redis), s.logger)
		throttle = func(name string) func(http.Handler) http.Handler {
			return limiter.Limit(name, s.config.RateLimit, s.config.RateWindow)
		}
	}

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api/users", func(r chi.Router) {
		r.With(throttle("register")).Post("/register", accountHandler.HandleRegister)
		r.With(throttle("login")).Post("/login", accountHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, handler.Unauthorized))

			r.Get("/profile", profileHandler.HandleGet)
			r.Put("/profile", profileHandler.HandleUpdate)

			r.Get("/events", eventHandler.HandleList)
			r.Post("/events", eventHandler.HandleCreate)
			r.Delete("/events/{eventID}", eventHandler.HandleDelete)

			r.Get("/admin/users", adminHandler.HandleListUsers)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, wait for in-flight requests,
// close the database and Redis.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("throttling", s.redis != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
