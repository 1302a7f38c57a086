// Command server runs the repochat backend: configuration from the
// environment (and an optional .env file), the Credential Store, the
// Activity Log Sink, the OAuth providers and the HTTP server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sashabaranov/go-openai"

	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/config"
	"github.com/sakif/repochat/internal/repository"
	"github.com/sakif/repochat/internal/repository/postgres"
	sqliteRepo "github.com/sakif/repochat/internal/repository/sqlite"
	"github.com/sakif/repochat/internal/server"
	"github.com/sakif/repochat/internal/service"
	"github.com/sakif/repochat/internal/sink/sheets"
	"github.com/sakif/repochat/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// LOG_LEVEL follows slog: -4 debug, 0 info, 4 warn, 8 error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.Level(cfg.LogLevel),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if cfg.Auth.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.Secret = secret
		logger.Warn("AUTH_SECRET not set; sessions will not survive a restart")
	}

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Store:     store,
		Providers: providers(cfg, logger),
		Templates: web.Templates(),
	}
	if cfg.HTTP.TemplateDir != "" {
		deps.Templates = os.DirFS(cfg.HTTP.TemplateDir)
	}

	if cfg.Sheets.Configured() {
		client, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			CredentialsJSON: cfg.Sheets.CredentialsJSON,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			Endpoint:        cfg.Sheets.Endpoint,
			Timeout:         cfg.HTTP.ClientTimeout,
		})
		if err != nil {
			store.Close()
			return fmt.Errorf("creating sheets client: %w", err)
		}
		deps.Sink = client
	} else {
		logger.Warn("Google Sheets not configured; activity logging endpoints will return errors")
	}

	if cfg.OpenAI.APIKey != "" {
		deps.Chat = chatClient(cfg)
	} else {
		logger.Warn("OPENAI_API_KEY not set; /api/chat is unavailable")
	}

	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	srv.EnsureSheetStructure(ctx)

	return srv.Start()
}

func openStore(ctx context.Context, cfg config.Database, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case "postgres":
		conn, err := postgres.NewConnection(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		logger.Info("credential store ready", slog.String("driver", "postgres"))
		return conn, nil

	default:
		dir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		logger.Info("credential store ready", slog.String("driver", "sqlite"), slog.String("path", cfg.SQLitePath))
		return db, nil
	}
}

func providers(cfg *config.Config, logger *slog.Logger) []service.IdentityProvider {
	var out []service.IdentityProvider

	if cfg.GitHub.Enabled() {
		out = append(out, auth.NewGitHubProvider(
			cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, callbackURL(cfg, cfg.GitHub, "github"),
		).WithTimeout(cfg.HTTP.ClientTimeout))
	} else {
		logger.Warn("GitHub OAuth not configured")
	}

	if cfg.GitLab.Enabled() {
		out = append(out, auth.NewGitLabProvider(
			cfg.GitLab.ClientID, cfg.GitLab.ClientSecret, callbackURL(cfg, cfg.GitLab, "gitlab"), cfg.GitLab.BaseURL,
		).WithTimeout(cfg.HTTP.ClientTimeout))
	}

	return out
}

func callbackURL(cfg *config.Config, app config.OAuthApp, provider string) string {
	if app.CallbackURL != "" {
		return app.CallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/%s/callback", cfg.HTTP.Port, provider)
}

func chatClient(cfg *config.Config) *openai.Client {
	conf := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		conf.BaseURL = cfg.OpenAI.BaseURL
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.HTTP.ClientTimeout}
	return openai.NewClientWithConfig(conf)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
