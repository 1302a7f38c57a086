package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/service"
)

const (
	stateCookie    = "oauth_state"
	callbackCookie = "oauth_callback"
	oauthCookieAge = 10 * time.Minute
)

// AuthHandler manages provider sign-in and session endpoints.
//
//   - HandleLogin        → redirect the browser to GitHub or GitLab
//   - HandleCallback     → exchange the code, store the token, issue a session
//   - HandleLogout       → clear the session cookie
//   - HandleMe           → return the current session
//   - HandleGitHubAuth   → re-check a stored GitHub token and refresh the session
//   - HandleVerifyToken  → accept any well-formed request
type AuthHandler struct {
	svc         *service.AuthService
	sessionTTL  time.Duration
	secure      bool
	landingPath string
	signInPath  string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. landingPath is where users go after
// sign-in when no callback was requested.
func NewAuthHandler(
	svc *service.AuthService,
	sessionTTL time.Duration,
	secure bool,
	landingPath, signInPath string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:         svc,
		sessionTTL:  sessionTTL,
		secure:      secure,
		landingPath: landingPath,
		signInPath:  signInPath,
		logger:      logger,
	}
}

// HandleLogin redirects to the provider's authorization page.
//
// HTTP: GET /auth/{provider}/login?callbackUrl=/repositories
//
// A random state goes into a short-lived cookie and is checked on callback.
// The requested callbackUrl is kept in a second cookie when it is a local
// path.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider, err := h.svc.Provider(model.Provider(chi.URLParam(r, "provider")))
	if err != nil {
		writeError(w, err)
		return
	}

	state := xid.New().String()
	h.setShortCookie(w, stateCookie, state)

	if cb := r.URL.Query().Get(auth.CallbackParam); isLocalPath(cb) {
		h.setShortCookie(w, callbackCookie, url.QueryEscape(cb))
	}

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	kind := model.Provider(chi.URLParam(r, "provider"))
	q := r.URL.Query()

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || q.Get("state") != state.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", string(kind)))
		writeError(w, apperror.ValidationFailed("state", "Invalid OAuth state"))
		return
	}
	h.clearCookie(w, stateCookie)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", string(kind)),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, h.signInPath+"?error=denied", http.StatusSeeOther)
		return
	}

	result, err := h.svc.SignIn(r.Context(), kind, q.Get("code"), clientIP(r))
	if err != nil {
		logFailure(h.logger, "auth callback: sign-in failed", err, slog.String("provider", string(kind)))
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.sessionTTL, h.secure)

	target := h.landingPath
	if c, err := r.Cookie(callbackCookie); err == nil {
		if cb, err := url.QueryUnescape(c.Value); err == nil && isLocalPath(cb) {
			target = cb
		}
		h.clearCookie(w, callbackCookie)
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleLogout clears the session cookie. The token itself stays valid until
// it expires; without the cookie the browser no longer sends it.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the session resolved by RequireSession.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type gitHubAuthResponse struct {
	Success bool                     `json:"success"`
	User    *model.AuthenticatedUser `json:"user"`
}

// HandleGitHubAuth checks the stored GitHub token of the signed-in user and,
// when GitHub still accepts it, refreshes their session cookie.
//
// The route sits behind auth.RequireSession. A session can only refresh
// itself: asking about any other email is 403, so knowing an address is not
// enough to obtain a session for it.
//
// HTTP: POST /api/github-auth {"email"} → {"success": true, "user": {...}}
func (h *AuthHandler) HandleGitHubAuth(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.EqualFold(email, session.Email) {
		h.logger.Warn("github-auth for another user refused",
			slog.String("session_email", session.Email),
			slog.String("requested_email", email),
		)
		writeError(w, apperror.Forbidden("Cannot re-authenticate another user"))
		return
	}
	if email != "" {
		email = session.Email
	}

	user, result, err := h.svc.Reauthenticate(r.Context(), email)
	if err != nil {
		logFailure(h.logger, "github-auth failed", err)
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, apperror.UpstreamAuth("GitHub authentication failed"))
		return
	}

	auth.SetSessionCookie(w, result.Token, h.sessionTTL, h.secure)
	writeJSON(w, http.StatusOK, gitHubAuthResponse{Success: true, User: user})
}

type verifyTokenRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// HandleVerifyToken accepts every well-formed request. What it should verify
// has not been decided, so it verifies nothing.
//
// HTTP: POST /api/verify-token {"email", "token"} → {"valid": true, "message": "..."}
func (h *AuthHandler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "message": "Token is valid"})
}

func (h *AuthHandler) setShortCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(oauthCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isLocalPath accepts only same-origin absolute paths, so a callbackUrl can
// never send the browser to another host.
func isLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Host == "" && u.Scheme == ""
}
