// Package server is the composition root: it builds services and handlers
// from already-opened dependencies, mounts the routes and runs the listener
// with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/config"
	"github.com/sakif/repochat/internal/handler"
	"github.com/sakif/repochat/internal/middleware"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/repository"
	"github.com/sakif/repochat/internal/service"
)

// Deps are the external resources main opens. Sink and Chat are nil when
// their credentials are not configured; the matching endpoints then answer
// with a configuration error instead of the server refusing to start.
type Deps struct {
	Store     repository.Store
	Sink      service.ActivitySink
	Chat      service.ChatCompleter
	Providers []service.IdentityProvider
	Templates fs.FS
}

// Server owns the router and the Credential Store, which it closes on
// shutdown.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	tokens   *auth.TokenService
	activity *service.ActivityService
}

// New wires the dependency graph:
//
//	Store ─┬─ AuthService ── AuthHandler
//	       └─ SignupService ─┐
//	Sink ──── ActivityService ┼─ ActivityHandler
//	Chat ──── ChatService ────┴─ ChatHandler
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: a credential store is required")
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("server: creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  deps.Store,
		tokens: tokens,
	}

	if err := s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts:
//
//	GET  /login, /repositories           pages (the gate guards /repositories)
//	GET  /auth/{provider}/login|callback OAuth sign-in
//	POST /auth/logout
//	/api/...                             JSON endpoints
//	GET  /healthz, /metrics
func (s *Server) setupRoutes(deps Deps) error {
	logger := s.logger

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.Gate(s.tokens, s.config.Auth.ProtectedPath, s.config.Auth.SignInPath))

	s.activity = service.NewActivityService(deps.Sink, logger)
	signups := service.NewSignupService(deps.Store, s.activity, logger)
	authSvc := service.NewAuthService(deps.Store, s.tokens, s.activity, logger, deps.Providers...)
	chat := service.NewChatService(deps.Chat, s.config.OpenAI.Model, s.activity, logger)

	kinds := make([]model.Provider, 0, len(deps.Providers))
	for _, p := range deps.Providers {
		kinds = append(kinds, p.Kind())
	}

	pages, err := handler.NewPageHandler(deps.Templates, kinds, s.config.Auth.ProtectedPath, logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(authSvc, s.tokens.TTL(), s.config.Auth.CookieSecure,
		s.config.Auth.ProtectedPath, s.config.Auth.SignInPath, logger)
	activityHandler := handler.NewActivityHandler(s.activity, signups, logger)
	chatHandler := handler.NewChatHandler(chat, logger)
	health := handler.NewHealthHandler(deps.Store, logger)

	s.router.Get(s.config.Auth.SignInPath, pages.HandleLogin)
	s.router.Get(s.config.Auth.ProtectedPath, pages.HandleRepositories)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/check-user-exists", activityHandler.HandleCheckUserExists)
		r.Post("/log-login", activityHandler.HandleLogLogin)
		r.Post("/log-login-info", activityHandler.HandleLogLoginInfo)
		r.Post("/log-chat", activityHandler.HandleLogChat)
		r.Post("/user-data", activityHandler.HandleUserData)
		r.Get("/ensure-sheet-structure", activityHandler.HandleEnsureSheetStructure)
		r.Post("/debug/log-chat", activityHandler.HandleDebugLogChat)

		r.Post("/verify-token", authHandler.HandleVerifyToken)
		r.Post("/chat", chatHandler.HandleChat)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(s.tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/github-auth", authHandler.HandleGitHubAuth)
		})
	})

	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	return nil
}

// EnsureSheetStructure prepares the Activity Log Sink once at startup. A
// failure is logged and the server starts anyway; the structure can be
// retried through /api/ensure-sheet-structure.
func (s *Server) EnsureSheetStructure(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.HTTP.ClientTimeout)
	defer cancel()

	if _, err := s.activity.EnsureStructure(ctx); err != nil {
		s.logger.Warn("activity sheet not prepared", slog.String("error", err.Error()))
	}
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the Credential Store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTP.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.HTTP.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.HTTP.Port)),
			slog.String("database", s.config.Database.Driver),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
