package file

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

const sampleConfig = `
[engine]
remote_concurrency = 4
remote_rate_per_second = 2.5

[storage]
persist = true

[sources.tracker]
kind = "rest"
base_url = "https://tracker.example.com/api"
paginator = "offset"
page_size = 50

[[sources.tracker.entities]]
name = "Ticket"
attributes = ["remoteID", "title"]

[[sources.tracker.entities.relationships]]
name = "watchers"
destination = "Person"
to_many = true

[[sources.tracker.entities]]
name = "Person"
attributes = ["remoteID", "login"]

[sources.tracker.mappings.Ticket]
path = "tickets"
key = "id"
results_key = "items"

[sources.tracker.mappings.Ticket.fields]
title = "summary"

[sources.tracker.mappings.Ticket.relationships.watchers]
merge = "append"

[sources.gh]
kind = "github"
repository = "octo/hello"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	return dir
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep", "path")

	store, err := NewConfigStore(nestedPath)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	dir := writeConfig(t, "this is = = not toml")

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("i", 42))
	require.NoError(t, store.Set("f", 1.5))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("list", []string{"a", "b"}))

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Equal(t, 42, store.GetInt("i"))
	assert.InDelta(t, 1.5, store.GetFloat("f"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("i"), 1e-9)
	assert.True(t, store.GetBool("b"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("list"))

	assert.Equal(t, "", store.GetString("i"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.Zero(t, store.GetFloat("missing"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_SaveReload_KeepsTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(driven.KeyRemoteConcurrency, 3))
	require.NoError(t, store.Set("sources.gh.kind", "github"))
	require.NoError(t, store.Set("sources.gh.repository", "octo/hello"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[sources.gh]")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.GetInt(driven.KeyRemoteConcurrency))
	assert.Equal(t, "octo/hello", reloaded.GetString("sources.gh.repository"))
}

func TestConfigStore_Engine(t *testing.T) {
	store, err := NewConfigStore(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	cfg := store.Engine()
	assert.Equal(t, 4, cfg.RemoteConcurrency)
	assert.Equal(t, runtime.NumCPU(), cfg.ImportConcurrency)
	assert.InDelta(t, 2.5, cfg.RemoteRatePerSecond, 1e-9)
	assert.Equal(t, domain.DefaultUniquingAttribute, cfg.UniquingAttribute)
	assert.True(t, store.GetBool(driven.KeyPersist))
}

func TestConfigStore_Sources(t *testing.T) {
	store, err := NewConfigStore(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	sources, err := store.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 2)

	gh := sources[0]
	assert.Equal(t, "gh", gh.Name)
	assert.Equal(t, domain.SourceGitHub, gh.Kind)
	assert.Equal(t, "octo/hello", gh.Repository)

	tracker := sources[1]
	assert.Equal(t, "tracker", tracker.Name)
	assert.Equal(t, "offset", tracker.Paginator)
	assert.Equal(t, 50, tracker.PageSize)
	require.Len(t, tracker.Entities, 2)
	assert.Equal(t, "Ticket", tracker.Entities[0].Name)
	require.Len(t, tracker.Entities[0].Relationships, 1)
	assert.True(t, tracker.Entities[0].Relationships[0].ToMany)

	mapping := tracker.Mappings["Ticket"]
	assert.Equal(t, "tickets", mapping.Path)
	assert.Equal(t, "items", mapping.ResultsKey)
	assert.Equal(t, "summary", mapping.RemoteField("title"))
	assert.Equal(t, "append", mapping.Relationships["watchers"].Merge)

	model, err := tracker.Model()
	require.NoError(t, err)
	assert.Len(t, model.Entities(), 2)
}

func TestConfigStore_Sources_Invalid(t *testing.T) {
	store, err := NewConfigStore(writeConfig(t, "[sources.bad]\nkind = \"ftp\"\n"))
	require.NoError(t, err)

	_, err = store.Sources()
	assert.ErrorContains(t, err, "unknown kind")
}

func TestConfigStore_Sources_Empty(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	sources, err := store.Sources()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("key", i)
			_ = store.GetInt("key")
		}()
	}
	wg.Wait()

	_, ok := store.Get("key")
	assert.True(t, ok)
}
