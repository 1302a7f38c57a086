package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatedHandler(ts *TokenService) (http.Handler, *bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return Gate(ts, "/repositories", "/login")(next), &reached
}

func TestGate_RedirectsAnonymousToLogin(t *testing.T) {
	ts := newTestTokenService(t)
	h, reached := gatedHandler(ts)

	req := httptest.NewRequest(http.MethodGet, "/repositories?owner=octocat", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.False(t, *reached)
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/repositories?owner=octocat", loc.Query().Get(CallbackParam))
}

func TestGate_RejectsInvalidAndExpiredTokens(t *testing.T) {
	ts := newTestTokenService(t)
	h, _ := gatedHandler(ts)

	expired, err := ts.GenerateWithDuration(testSession("octo@example.com"), -time.Minute)
	require.NoError(t, err)

	for _, token := range []string{"garbage", expired} {
		req := httptest.NewRequest(http.MethodGet, "/repositories", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	}
}

func TestGate_PassesValidSessionWithContext(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(testSession("octo@example.com"))
	require.NoError(t, err)

	var gotEmail string
	h := Gate(ts, "/repositories", "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		if ok {
			gotEmail = s.Email
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/repositories", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "octo@example.com", gotEmail)
}

func TestGate_AcceptsBearerHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(testSession("octo@example.com"))
	require.NoError(t, err)
	h, reached := gatedHandler(ts)

	req := httptest.NewRequest(http.MethodGet, "/repositories", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, *reached)
}

func TestGate_IgnoresOtherPaths(t *testing.T) {
	ts := newTestTokenService(t)

	for _, path := range []string{"/", "/login", "/repositories/extra", "/api/log-login", "/repository"} {
		h, reached := gatedHandler(ts)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.True(t, *reached, "path %s should pass through", path)
		assert.Equal(t, http.StatusOK, rr.Code, "path %s", path)
		assert.Empty(t, rr.Header().Get("Location"), "path %s", path)
	}
}

func TestRequireSession(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireSession(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())

	token, err := ts.Generate(testSession("octo@example.com"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSessionCookies(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "tok", time.Hour, true)
	ClearSessionCookie(rr, true)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
