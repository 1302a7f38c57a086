// Package repository declares the Credential Store interfaces. Implementations
// live in the postgres (Supabase) and sqlite (local development) subpackages.
package repository

import (
	"context"

	"github.com/sakif/repochat/internal/model"
)

// IdentityRepository stores per-user OAuth credentials keyed by email.
type IdentityRepository interface {
	// Upsert creates the identity or replaces its profile and token fields.
	Upsert(ctx context.Context, identity *model.UserIdentity) error
	// GetByEmail returns apperror.ErrNotFound when no row exists.
	GetByEmail(ctx context.Context, email string) (*model.UserIdentity, error)
}

// SignupRepository appends rows to the users table.
type SignupRepository interface {
	CreateSignup(ctx context.Context, record *model.SignupRecord) error
}

// Store is everything the server needs from one Credential Store backend.
type Store interface {
	IdentityRepository
	SignupRepository
	Ping(ctx context.Context) error
	Close() error
}
