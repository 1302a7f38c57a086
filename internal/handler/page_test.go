package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/handler"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/service"
	"github.com/sakif/repochat/internal/sink/sheets"
	"github.com/sakif/repochat/web"
)

func TestPageHandler_Login(t *testing.T) {
	h, err := handler.NewPageHandler(web.Templates(),
		[]model.Provider{model.ProviderGitHub, model.ProviderGitLab}, "/repositories", testLogger)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/login?callbackUrl=%2Frepositories", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "Continue with GitHub")
	assert.Contains(t, body, "Continue with GitLab")
	assert.Contains(t, body, "/auth/github/login?callbackUrl=")
	assert.NotContains(t, body, "No sign-in provider")
}

func TestPageHandler_RepositoriesShowsSession(t *testing.T) {
	h, err := handler.NewPageHandler(web.Templates(), nil, "/repositories", testLogger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/repositories", nil)
	req = req.WithContext(auth.WithSession(req.Context(), &model.Session{
		Email: "octo@example.com", Name: "Octo Cat", Provider: model.ProviderGitHub, ProviderUsername: "octocat",
	}))
	rr := httptest.NewRecorder()
	h.HandleRepositories(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Octo Cat")
}

func TestChatHandler(t *testing.T) {
	sink := newFakeSink()
	activity := service.NewActivityService(sink, testLogger)
	chat := service.NewChatService(&fakeCompleter{reply: "It starts the server."}, "", activity, testLogger)
	h := handler.NewChatHandler(chat, testLogger)

	rr := postJSON(t, h.HandleChat, "/api/chat", `{"email":"a@b.com","question":"what does main.go do?"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"answer":"It starts the server.","logged":true}`, rr.Body.String())
	assert.Len(t, sink.tab(sheets.TabChat), 1)

	sink.appendErr = errors.New("sheet gone")
	rr = postJSON(t, h.HandleChat, "/api/chat", `{"email":"a@b.com","question":"again?"}`)
	assert.Equal(t, http.StatusOK, rr.Code, "a failed chat log must not block the answer")
	assert.JSONEq(t, `{"answer":"It starts the server.","logged":false}`, rr.Body.String())

	rr = postJSON(t, h.HandleChat, "/api/chat", `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	store := newFakeStore()
	h := handler.NewHealthHandler(store, testLogger)

	rr := getJSON(h.HandleHealth, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	store.pingErr = errors.New("database is locked")
	rr = getJSON(h.HandleHealth, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
