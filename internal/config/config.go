// Package config loads server configuration from the environment.
//
// Values come from process environment variables. In development a .env file
// in the working directory is loaded first (see Load); variables already set
// in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config contains all server configuration parameters.
type Config struct {
	LogLevel int      `env:"LOG_LEVEL" envDefault:"0"`
	HTTP     HTTP     `envPrefix:"HTTP_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	GitHub   OAuthApp `envPrefix:"GITHUB_"`
	GitLab   OAuthApp `envPrefix:"GITLAB_"`
	Database Database `envPrefix:"DATABASE_"`
	Sheets   Sheets   `envPrefix:"GOOGLE_SHEETS_"`
	OpenAI   OpenAI   `envPrefix:"OPENAI_"`
}

// HTTP contains listener and outbound client parameters.
type HTTP struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	ClientTimeout time.Duration `env:"CLIENT_TIMEOUT" envDefault:"15s"`
	TemplateDir   string        `env:"TEMPLATE_DIR"`
}

// Auth contains session token and auth gate parameters.
type Auth struct {
	Secret        string        `env:"SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`
	ProtectedPath string        `env:"PROTECTED_PATH" envDefault:"/repositories"`
	SignInPath    string        `env:"SIGN_IN_PATH" envDefault:"/login"`
}

// OAuthApp contains the credentials of one OAuth application.
// BaseURL is only set for self-hosted GitLab.
type OAuthApp struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
	BaseURL      string `env:"BASE_URL"`
}

// Enabled reports whether both halves of the client credentials are set.
func (a OAuthApp) Enabled() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}

// Database contains credential store parameters.
// Driver is "postgres" (Supabase or any Postgres) or "sqlite" for local runs.
type Database struct {
	Driver     string `env:"DRIVER" envDefault:"sqlite"`
	DSN        string `env:"DSN"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/repochat.db"`
}

// Sheets contains Activity Log Sink parameters.
type Sheets struct {
	SpreadsheetID   string `env:"SPREADSHEET_ID"`
	CredentialsJSON string `env:"CREDENTIALS_JSON"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
	Endpoint        string `env:"ENDPOINT"`
}

// Configured reports whether the sink has a target spreadsheet and a way to
// reach it: service account credentials, or an endpoint override (an
// emulator or proxy that needs no Google credentials).
func (s Sheets) Configured() bool {
	if s.SpreadsheetID == "" {
		return false
	}
	return s.CredentialsJSON != "" || s.CredentialsFile != "" || s.Endpoint != ""
}

// OpenAI contains chat completion parameters.
type OpenAI struct {
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"BASE_URL"`
}

// NewConfig parses configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads the optional dotenv files and then parses the environment.
// A missing file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return NewConfig()
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("config: DATABASE_DSN is required when DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}

	if c.Auth.Secret != "" && len(c.Auth.Secret) < 16 {
		return errors.New("config: AUTH_SECRET must be at least 16 characters")
	}

	return nil
}
