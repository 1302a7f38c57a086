// Package auth issues and verifies session tokens, talks to the OAuth
// providers, and gates protected pages.
//
// SESSION FLOW:
//  1. User visits /auth/{provider}/login and is redirected to GitHub or GitLab
//  2. The provider calls back with a code; the code is exchanged for a token
//     and the user's profile
//  3. The token is stored in the Credential Store, and a signed session token
//     carrying the profile is set as an HttpOnly cookie
//  4. Later requests are resolved back into a model.Session from that cookie
//     (or an Authorization: Bearer header) without any server-side lookup
//
// WHY JWT?
// The session is stateless: every field a page or handler needs (email,
// provider, username, avatar) is inside the signed token, so resolving a
// request costs no Credential Store lookup. The signature ensures nobody can
// edit the email or profile without the secret.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"octo@example.com","provider":"github","profile":{...},"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// WHAT IS NOT IN THE TOKEN:
// The payload is only base64, so anyone holding the cookie can read it. The
// provider access token therefore never goes in; it stays in the Credential
// Store and is read only when an upstream call needs it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/repochat/internal/model"
)

const issuer = "repochat"

// DefaultSessionTTL is used when NewTokenService is given a zero TTL.
const DefaultSessionTTL = 30 * 24 * time.Hour

// TokenService handles session token creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given HMAC secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime given to tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the token payload. It embeds jwt.RegisteredClaims for the
// standard fields.
//
// "sub" (Subject) holds the email, the Credential Store's primary key, so a
// session can always be traced back to its identity row.
type claims struct {
	jwt.RegisteredClaims
	Name             string         `json:"name,omitempty"`
	Provider         model.Provider `json:"provider"`
	ProviderUsername string         `json:"providerUsername,omitempty"`
	Profile          model.Profile  `json:"profile"`
}

// Generate signs a session token with the service TTL.
func (s *TokenService) Generate(session model.Session) (string, error) {
	return s.GenerateWithDuration(session, s.ttl)
}

// GenerateWithDuration signs a session token that expires after d.
func (s *TokenService) GenerateWithDuration(session model.Session, d time.Duration) (string, error) {
	if session.Email == "" {
		return "", errors.New("auth: session has no email")
	}
	if err := session.Profile.Validate(); err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Name:             session.Name,
		Provider:         session.Provider,
		ProviderUsername: session.ProviderUsername,
		Profile:          session.Profile,
	}

	// NewWithClaims builds an unsigned token; SignedString signs it.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token and returns the session it
// carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and has an expiry at all
//   - Issuer is "repochat"
//   - Algorithm is HS256
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, a token with "alg":"none" could be accepted.
// jwt.WithValidMethods rejects it before the key func is consulted.
func (s *TokenService) Validate(tokenStr string) (*model.Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &model.Session{
		Email:            c.Subject,
		Name:             c.Name,
		Provider:         c.Provider,
		ProviderUsername: c.ProviderUsername,
		Profile:          c.Profile,
	}, nil
}
