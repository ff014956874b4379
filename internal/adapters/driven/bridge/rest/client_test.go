package rest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/backsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/backsync/internal/core/domain"
)

// rotatingTokens hands out whatever token is current.
type rotatingTokens struct {
	mu    sync.Mutex
	token string
}

func (r *rotatingTokens) set(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

func (r *rotatingTokens) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &oauth2.Token{AccessToken: r.token, TokenType: "Bearer"}, nil
}

func TestBridge_TokenSourceRotates(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tokens := &rotatingTokens{token: "first"}
	src := domain.Source{Name: "tracker", Kind: domain.SourceREST, BaseURL: srv.URL, Token: "static"}
	b, err := New(src, memory.NewStore(mustModel(t)), nil, WithTokenSource(tokens))
	require.NoError(t, err)

	for _, token := range []string{"first", "second"} {
		tokens.set(token)
		resp, err := b.client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, []string{"Bearer first", "Bearer second"}, seen)
}

func TestBridge_StaticTokenAndAnonymous(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	for token, want := range map[string]string{"secret": "Bearer secret", "": ""} {
		src := domain.Source{Name: "tracker", Kind: domain.SourceREST, BaseURL: srv.URL, Token: token}
		b, err := New(src, memory.NewStore(mustModel(t)), nil)
		require.NoError(t, err)

		resp, err := b.client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, got)
	}
}

func mustModel(t *testing.T) *domain.Model {
	t.Helper()
	model, err := domain.NewModel(&domain.Entity{Name: "Ticket", Attributes: []string{"remoteID"}})
	require.NoError(t, err)
	return model
}
