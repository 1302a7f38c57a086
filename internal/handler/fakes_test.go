package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/sink/sheets"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const testSecret = "handler-test-secret-32-chars!!!!"

// fakeSink is an in-memory Activity Log Sink.
type fakeSink struct {
	mu        sync.Mutex
	rows      map[string][][]any
	appendErr error
	ensured   bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{rows: make(map[string][][]any)}
}

func (f *fakeSink) Append(ctx context.Context, tab string, row []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows[tab] = append(f.rows[tab], row)
	return nil
}

func (f *fakeSink) ColumnContains(ctx context.Context, tab, column, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows[tab] {
		if len(row) > 1 && row[1] == value {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSink) EnsureStructure(ctx context.Context, layouts []sheets.Layout) (sheets.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensured {
		return sheets.Report{}, nil
	}
	f.ensured = true
	titles := make([]string, 0, len(layouts))
	for _, l := range layouts {
		titles = append(titles, l.Title)
	}
	return sheets.Report{CreatedTabs: titles}, nil
}

func (f *fakeSink) tab(name string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[name]
}

// fakeStore is an in-memory Credential Store.
type fakeStore struct {
	mu         sync.Mutex
	identities map[string]model.UserIdentity
	signups    []model.SignupRecord
	signupErr  error
	pingErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{identities: make(map[string]model.UserIdentity)}
}

func (s *fakeStore) Upsert(ctx context.Context, identity *model.UserIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.Email] = *identity
	return nil
}

func (s *fakeStore) GetByEmail(ctx context.Context, email string) (*model.UserIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[email]
	if !ok {
		return nil, apperror.NotFound("identity", email)
	}
	return &identity, nil
}

func (s *fakeStore) CreateSignup(ctx context.Context, record *model.SignupRecord) error {
	if s.signupErr != nil {
		return s.signupErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signups = append(s.signups, *record)
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }
func (s *fakeStore) Close() error                   { return nil }

// fakeProvider stands in for GitHub: any code exchanges to octocat, and only
// the "gho_valid" token passes FetchProfile.
type fakeProvider struct {
	kind model.Provider
}

func (p *fakeProvider) Kind() model.Provider { return p.kind }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*auth.Grant, error) {
	if code == "bad" {
		return nil, errors.New("bad_verification_code")
	}
	return &auth.Grant{
		Token:   &oauth2.Token{AccessToken: "gho_valid", Expiry: time.Now().Add(time.Hour)},
		Profile: octocat(),
	}, nil
}

func (p *fakeProvider) FetchProfile(ctx context.Context, accessToken string) (model.Profile, error) {
	if accessToken != "gho_valid" {
		return model.Profile{}, auth.ErrTokenRejected
	}
	return octocat(), nil
}

func octocat() model.Profile {
	return model.NewGitHubProfile(model.GitHubProfile{
		ID: 1, Login: "octocat", Name: "Octo Cat", Email: "octo@example.com",
	})
}

// fakeCompleter answers every question with the same reply.
type fakeCompleter struct {
	reply string
}

func (c *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: c.reply}}},
	}, nil
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func cookieByName(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func getJSON(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}
