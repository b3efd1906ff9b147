// Package server wires the application together: store selection, session
// mode, services, handlers and routes. It is the composition root — every
// dependency is constructed here and injected downward, so nothing below
// this package reaches for ambient globals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kamiapp/kami/internal/ai"
	"github.com/kamiapp/kami/internal/auth"
	"github.com/kamiapp/kami/internal/handler"
	"github.com/kamiapp/kami/internal/middleware"
	"github.com/kamiapp/kami/internal/repository"
	memoryRepo "github.com/kamiapp/kami/internal/repository/memory"
	sqliteRepo "github.com/kamiapp/kami/internal/repository/sqlite"
	"github.com/kamiapp/kami/internal/service"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port   int
	DBPath string

	// DemoMode swaps SQLite for the seeded in-memory store.
	DemoMode bool

	// TokenMode is "opaque" (default) or "signed"; signed requires JWTSecret.
	TokenMode string
	JWTSecret string

	// DisableFallback turns off structural token parsing in opaque mode.
	DisableFallback bool
	// SessionTTL, when positive, expires opaque tokens. Zero keeps the
	// historical live-forever behavior.
	SessionTTL time.Duration

	// DebugRoutes mounts GET /api/debug/tokens.
	DebugRoutes bool

	// ScheduledAPIKey guards POST /api/scheduled-messages. Empty disables
	// the route entirely.
	ScheduledAPIKey string
}

// stores is everything the service layer needs from a backing store. Both
// *sqlite.DB and *memory.Store satisfy it.
type stores interface {
	repository.UserRepository
	repository.GodRepository
	repository.MessageRepository
	repository.PostRepository
}

// Server owns the router and, when SQLite-backed, the database handle.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB // nil in demo mode; closed on shutdown otherwise
}

// New assembles the full dependency graph.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	passwords := auth.NewPasswordService()

	var (
		store stores
		db    *sqliteRepo.DB
	)
	if cfg.DemoMode {
		seeded, err := memoryRepo.NewSeeded(passwords)
		if err != nil {
			return nil, fmt.Errorf("seeding demo store: %w", err)
		}
		store = seeded
		logger.Info("demo mode: using seeded in-memory store")
	} else {
		var err error
		db, err = sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		store = db
	}

	sessions, err := buildSessions(cfg, store)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(store, sessions, passwords)
	return s, nil
}

// buildSessions selects the token scheme from config.
func buildSessions(cfg Config, store stores) (*auth.Sessions, error) {
	switch cfg.TokenMode {
	case "", string(auth.ModeOpaque):
		var opts []auth.RegistryOption
		if cfg.DisableFallback {
			opts = append(opts, auth.WithoutFallback())
		}
		if cfg.SessionTTL > 0 {
			opts = append(opts, auth.WithTTL(cfg.SessionTTL))
		}
		return auth.NewSessions(store, auth.NewRegistry(store, opts...)), nil

	case string(auth.ModeSigned):
		tokens, err := auth.NewTokenService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("signed token mode: %w", err)
		}
		return auth.NewSignedSessions(store, tokens), nil

	default:
		return nil, fmt.Errorf("unknown token mode %q (want opaque or signed)", cfg.TokenMode)
	}
}

func (s *Server) setupRoutes(store stores, sessions *auth.Sessions, passwords *auth.PasswordService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	authSvc := service.NewAuthService(store, sessions, passwords, s.logger)
	godSvc := service.NewGodService(store, store, store, ai.NewOracle(), s.logger)
	postSvc := service.NewPostService(store, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, s.logger)
	godHandler := handler.NewGodHandler(godSvc, s.logger)
	postHandler := handler.NewPostHandler(postSvc, s.logger)

	// Public authentication surface.
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/verify", authHandler.HandleVerify)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// Everything under /api (except the cron trigger) sits behind the
	// request gate.
	s.router.Route("/api", func(r chi.Router) {
		if s.config.ScheduledAPIKey != "" {
			broadcast := handler.NewBroadcastHandler(godSvc, s.config.ScheduledAPIKey, s.logger)
			r.Post("/scheduled-messages", broadcast.HandleTrigger)
		}
		if s.config.DebugRoutes {
			debug := handler.NewDebugHandler(sessions, s.logger)
			r.Get("/debug/tokens", debug.HandleTokens)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(sessions))

			r.Get("/me", authHandler.HandleMe)

			r.Post("/gods", godHandler.HandleCreate)
			r.Get("/gods/my", godHandler.HandleMyGods)
			r.Get("/gods/{id}", godHandler.HandleGetByID)
			r.Get("/gods/{id}/messages", godHandler.HandleConversation)
			r.Post("/gods/{id}/messages", godHandler.HandleChat)

			r.Get("/posts", postHandler.HandleList)
			r.Post("/posts", postHandler.HandleCreate)
			r.Get("/posts/{id}/comments", postHandler.HandleListComments)
			r.Post("/posts/{id}/comments", postHandler.HandleCreateComment)
			r.Post("/posts/{id}/like", postHandler.HandleLike)
			r.Delete("/posts/{id}/like", postHandler.HandleUnlike)
		})
	})
}

// Router exposes the configured mux, mainly for tests that drive the server
// through httptest without opening a socket.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
func (s *Server) Start() error {
	if s.db != nil {
		defer s.db.Close()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.Bool("demoMode", s.config.DemoMode),
			slog.String("tokenMode", string(sessionModeLabel(s.config))),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func sessionModeLabel(cfg Config) auth.Mode {
	if cfg.TokenMode == string(auth.ModeSigned) {
		return auth.ModeSigned
	}
	return auth.ModeOpaque
}
