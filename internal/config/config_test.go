package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_DefaultValues(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ClientTimeout)
	assert.Equal(t, "/repositories", cfg.Auth.ProtectedPath)
	assert.Equal(t, "/login", cfg.Auth.SignInPath)
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/repochat.db", cfg.Database.SQLitePath)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.False(t, cfg.GitHub.Enabled())
	assert.False(t, cfg.Sheets.Configured())
}

func TestNewConfig_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*Config)
	}{
		{
			name:    "log level override",
			envVars: map[string]string{"LOG_LEVEL": "-4"},
			expected: func(cfg *Config) {
				assert.Equal(t, -4, cfg.LogLevel)
			},
		},
		{
			name: "github app",
			envVars: map[string]string{
				"GITHUB_CLIENT_ID":     "id",
				"GITHUB_CLIENT_SECRET": "secret",
				"GITHUB_CALLBACK_URL":  "https://example.com/auth/github/callback",
			},
			expected: func(cfg *Config) {
				assert.True(t, cfg.GitHub.Enabled())
				assert.Equal(t, "https://example.com/auth/github/callback", cfg.GitHub.CallbackURL)
				assert.False(t, cfg.GitLab.Enabled())
			},
		},
		{
			name: "postgres store",
			envVars: map[string]string{
				"DATABASE_DRIVER": "postgres",
				"DATABASE_DSN":    "postgres://u:p@db.supabase.co:5432/postgres",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, "postgres://u:p@db.supabase.co:5432/postgres", cfg.Database.DSN)
			},
		},
		{
			name: "sheets sink",
			envVars: map[string]string{
				"GOOGLE_SHEETS_SPREADSHEET_ID":   "sheet-id",
				"GOOGLE_SHEETS_CREDENTIALS_JSON": `{"type":"service_account"}`,
			},
			expected: func(cfg *Config) {
				assert.True(t, cfg.Sheets.Configured())
			},
		},
		{
			name: "sheets endpoint without credentials",
			envVars: map[string]string{
				"GOOGLE_SHEETS_SPREADSHEET_ID": "sheet-id",
				"GOOGLE_SHEETS_ENDPOINT":       "http://localhost:9090/",
			},
			expected: func(cfg *Config) {
				assert.True(t, cfg.Sheets.Configured())
			},
		},
		{
			name:    "sheets id alone",
			envVars: map[string]string{"GOOGLE_SHEETS_SPREADSHEET_ID": "sheet-id"},
			expected: func(cfg *Config) {
				assert.False(t, cfg.Sheets.Configured())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := NewConfig()
			require.NoError(t, err)
			tt.expected(cfg)
		})
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{name: "postgres without dsn", envVars: map[string]string{"DATABASE_DRIVER": "postgres"}},
		{name: "unknown driver", envVars: map[string]string{"DATABASE_DRIVER": "mysql"}},
		{name: "short secret", envVars: map[string]string{"AUTH_SECRET": "short"}},
		{name: "bad duration", envVars: map[string]string{"HTTP_CLIENT_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_MODEL=gpt-test\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("OPENAI_MODEL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.OpenAI.Model)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
