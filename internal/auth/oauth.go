package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/gitlab"

	"github.com/sakif/repochat/internal/model"
)

var (
	// ErrTokenRejected means the provider answered 401/403 to the access token.
	ErrTokenRejected = errors.New("auth: provider rejected access token")
	// ErrUpstreamStatus means the provider answered with another non-200 status.
	ErrUpstreamStatus = errors.New("auth: provider returned an error")
)

const (
	gitHubAPIBase = "https://api.github.com"
	gitLabBase    = "https://gitlab.com"
)

// Grant is the result of a completed authorization code exchange.
type Grant struct {
	Token   *oauth2.Token
	Profile model.Profile
}

// OAuthProvider runs the Authorization Code flow against GitHub or GitLab and
// reads the signed-in user's profile.
type OAuthProvider struct {
	kind       model.Provider
	config     *oauth2.Config
	apiBase    string
	httpClient *http.Client
}

// NewGitHubProvider creates a provider for a GitHub OAuth App.
//
// Scopes:
//   - "read:user":  public profile (ID, login, avatar)
//   - "user:email": email addresses, needed when the public email is hidden
//   - "repo":       repository contents for browsing and chat
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return &OAuthProvider{
		kind: model.ProviderGitHub,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email", "repo"},
			Endpoint:     github.Endpoint,
		},
		apiBase:    gitHubAPIBase,
		httpClient: http.DefaultClient,
	}
}

// NewGitLabProvider creates a provider for a GitLab application. baseURL is
// the instance root for self-hosted GitLab; empty means gitlab.com.
func NewGitLabProvider(clientID, clientSecret, callbackURL, baseURL string) *OAuthProvider {
	endpoint := gitlab.Endpoint
	base := gitLabBase
	if baseURL != "" {
		base = strings.TrimRight(baseURL, "/")
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/oauth/authorize",
			TokenURL: base + "/oauth/token",
		}
	}

	return &OAuthProvider{
		kind: model.ProviderGitLab,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read_user", "read_api", "read_repository"},
			Endpoint:     endpoint,
		},
		apiBase:    base + "/api/v4",
		httpClient: http.DefaultClient,
	}
}

// WithHTTPClient sets the client used for token exchange and API calls.
func (p *OAuthProvider) WithHTTPClient(c *http.Client) *OAuthProvider {
	p.httpClient = c
	return p
}

// WithTimeout is WithHTTPClient with a plain client carrying timeout.
func (p *OAuthProvider) WithTimeout(d time.Duration) *OAuthProvider {
	return p.WithHTTPClient(&http.Client{Timeout: d})
}

// WithEndpoints points the provider at other OAuth and API hosts.
func (p *OAuthProvider) WithEndpoints(endpoint oauth2.Endpoint, apiBase string) *OAuthProvider {
	p.config.Endpoint = endpoint
	p.apiBase = strings.TrimRight(apiBase, "/")
	return p
}

// Kind reports which provider this is.
func (p *OAuthProvider) Kind() model.Provider {
	return p.kind
}

// AuthURL returns the provider authorization URL for the given CSRF state.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a token and the user's profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.kind, err)
	}

	profile, err := p.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &Grant{Token: token, Profile: profile}, nil
}

// FetchProfile calls the provider's "current user" endpoint with accessToken.
//
// 401/403 answers are reported as ErrTokenRejected, other non-200 answers as
// ErrUpstreamStatus; failures to reach the provider are returned wrapped as
// they are.
func (p *OAuthProvider) FetchProfile(ctx context.Context, accessToken string) (model.Profile, error) {
	client := p.apiClient(ctx, accessToken)

	switch p.kind {
	case model.ProviderGitHub:
		var gh model.GitHubProfile
		if err := getJSON(ctx, client, p.apiBase+"/user", &gh); err != nil {
			return model.Profile{}, err
		}
		if gh.ID == 0 {
			return model.Profile{}, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
		}
		if gh.Email == "" {
			// Hidden public email; the primary address is still readable
			// with the user:email scope. Failure here is not fatal.
			gh.Email, _ = p.gitHubPrimaryEmail(ctx, client)
		}
		return model.NewGitHubProfile(gh), nil

	case model.ProviderGitLab:
		var gl model.GitLabProfile
		if err := getJSON(ctx, client, p.apiBase+"/user", &gl); err != nil {
			return model.Profile{}, err
		}
		if gl.ID == 0 {
			return model.Profile{}, fmt.Errorf("auth: GitLab returned an invalid user (ID = 0)")
		}
		return model.NewGitLabProfile(gl), nil
	}

	return model.Profile{}, fmt.Errorf("auth: unsupported provider %q", p.kind)
}

func (p *OAuthProvider) apiClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

func (p *OAuthProvider) gitHubPrimaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d", ErrTokenRejected, url, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s returned status %d", ErrUpstreamStatus, url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding %s response: %w", url, err)
	}
	return nil
}
