// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider identifies an external OAuth identity service.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	return p == ProviderGitHub || p == ProviderGitLab
}

// UserIdentity is the Credential Store row for one signed-in user.
//
// Email is the primary key. The row is created on the first OAuth sign-in and
// rewritten on every later sign-in so AccessToken always holds the most
// recently issued provider token. Rows are never deleted.
type UserIdentity struct {
	Email            string     `json:"email"            db:"email"`
	Name             string     `json:"name"             db:"name"`
	Provider         Provider   `json:"provider"         db:"provider"`
	ProviderUsername string     `json:"providerUsername" db:"provider_username"`
	AvatarURL        string     `json:"avatarUrl"        db:"avatar_url"`
	AccessToken      string     `json:"-"                db:"access_token"`
	RefreshToken     string     `json:"-"                db:"refresh_token"`
	TokenExpiry      *time.Time `json:"-"                db:"token_expiry"`
	CreatedAt        time.Time  `json:"createdAt"        db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt"        db:"updated_at"`
}

// AuthenticatedUser is the normalized user returned after a provider confirmed
// a stored token is still valid.
type AuthenticatedUser struct {
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	AvatarURL string   `json:"avatarUrl"`
	Provider  Provider `json:"provider"`
}

// SignupRecord is one row of the Credential Store's users table.
// Date and time are stored as the same display strings the Activity Log Sink
// receives.
type SignupRecord struct {
	Name         string `json:"name"         db:"name"`
	Email        string `json:"email"        db:"email"`
	Username     string `json:"username"     db:"username"`
	Organization string `json:"organization" db:"organization"`
	Purpose      string `json:"purpose"      db:"purpose"`
	SignupDate   string `json:"signup_date"  db:"signup_date"`
	SignupTime   string `json:"signup_time"  db:"signup_time"`
}
