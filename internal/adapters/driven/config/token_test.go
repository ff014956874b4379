package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSource_FollowsConfig(t *testing.T) {
	values := mapReader{}
	ts := TokenSource(values, "gh")

	_, err := ts.Token()
	assert.ErrorIs(t, err, ErrNoToken)

	values["sources.gh.token"] = "first"
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())

	values["sources.gh.token"] = "rotated"
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "rotated", tok.AccessToken)
}
