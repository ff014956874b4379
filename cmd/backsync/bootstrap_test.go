package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/backsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

const sourcesConfig = `
[sources.tracker]
kind = "rest"
base_url = "http://127.0.0.1:1/api"

[[sources.tracker.entities]]
name = "Ticket"
attributes = ["remoteID", "title"]

[sources.tracker.mappings.Ticket]
path = "tickets"

[sources.gh]
kind = "github"
repository = "octo/hello"
`

func writeConfigDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))
	return dir
}

func TestPersist(t *testing.T) {
	cfg := memory.NewConfigStore()
	assert.True(t, persist(cfg))

	require.NoError(t, cfg.Set(driven.KeyPersist, false))
	assert.False(t, persist(cfg))
}

func TestBootstrap_InMemory(t *testing.T) {
	dir := writeConfigDir(t, "[storage]\npersist = false\n"+sourcesConfig)

	svc, err := bootstrap(context.Background(), cli.Options{ConfigDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	assert.Equal(t, []string{"gh", "tracker"}, svc.Sync.Sources())

	history, err := svc.Sync.History(context.Background(), "tracker", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	sources, err := svc.Source.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, sources, 2)
	assert.NotNil(t, svc.NewScheduler)
	assert.NotNil(t, svc.WatchConfig)
}

func TestTokenSource_ReadsLiveConfig(t *testing.T) {
	cfg := memory.NewConfigStore()
	assert.Nil(t, tokenSource(cfg, domain.Source{Name: "gh"}))

	ts := tokenSource(cfg, domain.Source{Name: "gh", Token: "boot"})
	require.NotNil(t, ts)

	require.NoError(t, cfg.Set("sources.gh.token", "rotated"))
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "rotated", tok.AccessToken)
}

func TestBootstrap_PersistsToDataDir(t *testing.T) {
	data := t.TempDir()
	dir := writeConfigDir(t, fmt.Sprintf("[storage]\ndata_dir = %q\n", data)+sourcesConfig)

	svc, err := bootstrap(context.Background(), cli.Options{ConfigDir: dir})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	assert.FileExists(t, filepath.Join(data, "objects.db"))
}

func TestBootstrap_InvalidSource(t *testing.T) {
	dir := writeConfigDir(t, "[sources.broken]\nkind = \"rest\"\n")

	_, err := bootstrap(context.Background(), cli.Options{ConfigDir: dir})
	assert.ErrorContains(t, err, "base_url is required")
}
