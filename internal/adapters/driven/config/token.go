package config

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// ErrNoToken is returned when a source has no bearer token configured.
var ErrNoToken = errors.New("config: source has no token")

// TokenSource reads the bearer token of source from r on every call, so a
// reloaded configuration rotates the token of live clients.
func TokenSource(r Reader, source string) oauth2.TokenSource {
	return &tokenSource{r: r, source: source, key: driven.SourcesPrefix + source + ".token"}
}

type tokenSource struct {
	r      Reader
	source string
	key    string
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	token := t.r.GetString(t.key)
	if token == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, t.source)
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
