package model

import (
	"encoding/json"
	"fmt"
)

// GitHubProfile is the subset of GitHub's GET /user response we keep.
type GitHubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// GitLabProfile is the subset of GitLab's GET /api/v4/user response we keep.
type GitLabProfile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	WebURL    string `json:"web_url"`
}

// Profile is a tagged union over the provider profiles. Exactly one of
// GitHub and GitLab is non-nil and Kind names which one.
type Profile struct {
	Kind   Provider       `json:"kind"`
	GitHub *GitHubProfile `json:"github,omitempty"`
	GitLab *GitLabProfile `json:"gitlab,omitempty"`
}

func NewGitHubProfile(p GitHubProfile) Profile {
	return Profile{Kind: ProviderGitHub, GitHub: &p}
}

func NewGitLabProfile(p GitLabProfile) Profile {
	return Profile{Kind: ProviderGitLab, GitLab: &p}
}

// Username returns the provider login/username.
func (p Profile) Username() string {
	switch p.Kind {
	case ProviderGitHub:
		if p.GitHub != nil {
			return p.GitHub.Login
		}
	case ProviderGitLab:
		if p.GitLab != nil {
			return p.GitLab.Username
		}
	}
	return ""
}

// DisplayName falls back to the username when the provider has no name set.
func (p Profile) DisplayName() string {
	var name string
	switch p.Kind {
	case ProviderGitHub:
		if p.GitHub != nil {
			name = p.GitHub.Name
		}
	case ProviderGitLab:
		if p.GitLab != nil {
			name = p.GitLab.Name
		}
	}
	if name == "" {
		return p.Username()
	}
	return name
}

func (p Profile) Email() string {
	switch {
	case p.Kind == ProviderGitHub && p.GitHub != nil:
		return p.GitHub.Email
	case p.Kind == ProviderGitLab && p.GitLab != nil:
		return p.GitLab.Email
	}
	return ""
}

func (p Profile) AvatarURL() string {
	switch {
	case p.Kind == ProviderGitHub && p.GitHub != nil:
		return p.GitHub.AvatarURL
	case p.Kind == ProviderGitLab && p.GitLab != nil:
		return p.GitLab.AvatarURL
	}
	return ""
}

// Validate checks the union invariant.
func (p Profile) Validate() error {
	switch p.Kind {
	case ProviderGitHub:
		if p.GitHub == nil || p.GitLab != nil {
			return fmt.Errorf("model: github profile must carry only github fields")
		}
	case ProviderGitLab:
		if p.GitLab == nil || p.GitHub != nil {
			return fmt.Errorf("model: gitlab profile must carry only gitlab fields")
		}
	default:
		return fmt.Errorf("model: unknown profile kind %q", p.Kind)
	}
	return nil
}

// UnmarshalJSON rejects payloads that break the union invariant.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type raw Profile
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if err := Profile(r).Validate(); err != nil {
		return err
	}
	*p = Profile(r)
	return nil
}
