package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

func TestValues_Getters(t *testing.T) {
	v := Values{
		"s":     "text",
		"i64":   int64(7),
		"i":     3,
		"f":     1.5,
		"b":     true,
		"list":  []any{"a", 1, "b"},
		"strs":  []string{"x"},
		"wrong": struct{}{},
	}

	assert.Equal(t, "text", v.String("s"))
	assert.Equal(t, "", v.String("i"))
	assert.Equal(t, 7, v.Int("i64"))
	assert.Equal(t, 3, v.Int("i"))
	assert.Equal(t, 1, v.Int("f"))
	assert.Equal(t, 0, v.Int("wrong"))
	assert.InDelta(t, 7.0, v.Float("i64"), 1e-9)
	assert.InDelta(t, 1.5, v.Float("f"), 1e-9)
	assert.True(t, v.Bool("b"))
	assert.False(t, v.Bool("missing"))
	assert.Equal(t, []string{"a", "b"}, v.StringSlice("list"))
	assert.Equal(t, []string{"x"}, v.StringSlice("strs"))
	assert.Nil(t, v.StringSlice("s"))
}

func TestFlattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"engine": map[string]any{"remote_concurrency": int64(4)},
		"sources": map[string]any{
			"gh": map[string]any{"kind": "github", "repository": "octo/hello"},
		},
		"top": "level",
	}

	flat := Flatten(nested)
	assert.Equal(t, Values{
		"engine.remote_concurrency": int64(4),
		"sources.gh.kind":           "github",
		"sources.gh.repository":     "octo/hello",
		"top":                       "level",
	}, flat)
	assert.Equal(t, nested, flat.Unflatten())

	assert.Equal(t, Values{"gh.kind": "github", "gh.repository": "octo/hello"}, flat.Under(driven.SourcesPrefix))
}

type mapReader Values

func (r mapReader) GetString(key string) string { return Values(r).String(key) }
func (r mapReader) GetInt(key string) int       { return Values(r).Int(key) }
func (r mapReader) GetFloat(key string) float64 { return Values(r).Float(key) }

func TestEngine(t *testing.T) {
	cfg := Engine(mapReader{driven.KeyRemoteConcurrency: int64(9), driven.KeyRemoteRate: 2.5})

	assert.Equal(t, 9, cfg.RemoteConcurrency)
	assert.InDelta(t, 2.5, cfg.RemoteRatePerSecond, 1e-9)
	assert.Equal(t, domain.DefaultEngineConfig().ImportConcurrency, cfg.ImportConcurrency)
	assert.Equal(t, domain.DefaultUniquingAttribute, cfg.UniquingAttribute)
}
