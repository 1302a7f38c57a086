package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/model"
)

// Upsert inserts the identity or, when the email already exists, replaces its
// profile and token fields. CreatedAt of an existing row is preserved and
// copied back into identity.
func (db *DB) Upsert(ctx context.Context, identity *model.UserIdentity) error {
	now := time.Now().UTC()

	var createdAt time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM user_identities WHERE email = ?`, identity.Email,
	).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up identity %s: %w", identity.Email, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		identity.CreatedAt = now
		identity.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO user_identities
			   (email, name, provider, provider_username, avatar_url,
			    access_token, refresh_token, token_expiry, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			identity.Email,
			identity.Name,
			string(identity.Provider),
			identity.ProviderUsername,
			identity.AvatarURL,
			identity.AccessToken,
			identity.RefreshToken,
			nullTime(identity.TokenExpiry),
			identity.CreatedAt,
			identity.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting identity %s: %w", identity.Email, err)
		}
		return nil
	}

	identity.CreatedAt = createdAt
	identity.UpdatedAt = now
	_, err = db.conn.ExecContext(ctx,
		`UPDATE user_identities
		    SET name = ?, provider = ?, provider_username = ?, avatar_url = ?,
		        access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ?
		  WHERE email = ?`,
		identity.Name,
		string(identity.Provider),
		identity.ProviderUsername,
		identity.AvatarURL,
		identity.AccessToken,
		identity.RefreshToken,
		nullTime(identity.TokenExpiry),
		identity.UpdatedAt,
		identity.Email,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating identity %s: %w", identity.Email, err)
	}

	return nil
}

// GetByEmail returns apperror.ErrNotFound if no identity exists for email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.UserIdentity, error) {
	var (
		u        model.UserIdentity
		provider string
		expiry   sql.NullTime
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT email, name, provider, provider_username, avatar_url,
		        access_token, refresh_token, token_expiry, created_at, updated_at
		   FROM user_identities WHERE email = ?`,
		email,
	).Scan(
		&u.Email,
		&u.Name,
		&provider,
		&u.ProviderUsername,
		&u.AvatarURL,
		&u.AccessToken,
		&u.RefreshToken,
		&expiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity", email)
		}
		return nil, fmt.Errorf("sqlite: getting identity %s: %w", email, err)
	}

	u.Provider = model.Provider(provider)
	if expiry.Valid {
		t := expiry.Time
		u.TokenExpiry = &t
	}

	return &u, nil
}

// CreateSignup appends one row to the users table.
func (db *DB) CreateSignup(ctx context.Context, record *model.SignupRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, email, username, organization, purpose, signup_date, signup_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Name,
		record.Email,
		record.Username,
		record.Organization,
		record.Purpose,
		record.SignupDate,
		record.SignupTime,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting signup for %s: %w", record.Email, err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
