package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/model"
)

func (c *Connection) Upsert(ctx context.Context, identity *model.UserIdentity) error {
	query := `INSERT INTO user_identities
				(email, name, provider, provider_username, avatar_url, access_token, refresh_token, token_expiry)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (email) DO UPDATE SET
				name = EXCLUDED.name,
				provider = EXCLUDED.provider,
				provider_username = EXCLUDED.provider_username,
				avatar_url = EXCLUDED.avatar_url,
				access_token = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				token_expiry = EXCLUDED.token_expiry,
				updated_at = now()
			  RETURNING created_at, updated_at`

	err := c.QueryRow(ctx, query,
		identity.Email, identity.Name, string(identity.Provider), identity.ProviderUsername,
		identity.AvatarURL, identity.AccessToken, identity.RefreshToken, identity.TokenExpiry,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}

	return nil
}

func (c *Connection) GetByEmail(ctx context.Context, email string) (*model.UserIdentity, error) {
	var (
		u        model.UserIdentity
		provider string
	)
	query := `SELECT email, name, provider, provider_username, avatar_url,
				access_token, refresh_token, token_expiry, created_at, updated_at
			  FROM user_identities WHERE email = $1`

	err := c.QueryRow(ctx, query, email).Scan(
		&u.Email, &u.Name, &provider, &u.ProviderUsername, &u.AvatarURL,
		&u.AccessToken, &u.RefreshToken, &u.TokenExpiry, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("identity", email)
		}
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}
	u.Provider = model.Provider(provider)

	return &u, nil
}

func (c *Connection) CreateSignup(ctx context.Context, record *model.SignupRecord) error {
	query := `INSERT INTO users (name, email, username, organization, purpose, signup_date, signup_time)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := c.Exec(ctx, query,
		record.Name, record.Email, record.Username, record.Organization,
		record.Purpose, record.SignupDate, record.SignupTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create signup: %w", err)
	}

	return nil
}
