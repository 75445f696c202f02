package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/internsift/internal/classify"
	"github.com/FranksOps/internsift/internal/config"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Browser.Renderer = config.RendererStatic
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RegistersEverySource(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), quiet())
	require.NoError(t, err)
	defer a.Close()

	assert.ElementsMatch(t, listing.Sources, a.Orchestrator.Sources())
	assert.Equal(t, listing.SourceJSearch, a.Orchestrator.DefaultSource())
	assert.Equal(t, classify.PolicyLoose, a.RoleSpec.Name)
	assert.NotNil(t, a.Extractor)
	assert.Nil(t, a.Storage)
}

func TestNew_PlaywrightIsLazy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Renderer = config.RendererPlaywright

	a, err := New(context.Background(), cfg, quiet())
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Renderer = "selenium"

	_, err := New(context.Background(), cfg, quiet())
	require.ErrorContains(t, err, "browser.renderer")
}

func TestNew_PoliciesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policies:
  backend:
    include: [intern]
    categories: [backend, platform]
`), 0o600))

	cfg := testConfig(t)
	cfg.PoliciesFile = path
	cfg.Policy = "backend"

	a, err := New(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "backend", a.RoleSpec.Name)
	assert.Equal(t, []string{"backend", "platform"}, a.RoleSpec.Categories)
	assert.Contains(t, a.Policies.Names(), classify.PolicyStrict)
}

func TestNew_UnknownPolicyInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies: {}\n"), 0o600))

	cfg := testConfig(t)
	cfg.PoliciesFile = path
	cfg.Policy = "backend"

	_, err := New(context.Background(), cfg, quiet())
	require.ErrorIs(t, err, classify.ErrUnknownPolicy)
}

func TestNew_MissingProxiesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.ProxiesFile = filepath.Join(t.TempDir(), "missing.txt")

	_, err := New(context.Background(), cfg, quiet())
	require.ErrorContains(t, err, "proxies")
}

func TestNew_RecordsToStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendJSON
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "fetches.ndjson")
	// No key configured, so the API adapter fails fast without a request.
	cfg.JSearch.APIKey = ""

	a, err := New(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Storage)

	out, err := a.Orchestrator.Run(context.Background(), listing.Query{Terms: "software intern"})
	require.NoError(t, err)
	assert.Empty(t, out)

	records, err := a.Storage.Query(context.Background(), storage.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "jsearch", records[0].Source)
	assert.Equal(t, "unavailable", records[0].Outcome)
	assert.WithinDuration(t, time.Now(), records[0].CreatedAt, time.Minute)
}

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenStorage(ctx, config.StorageConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, b)

	for _, tc := range []config.StorageConfig{
		{Backend: config.BackendSQLite, DSN: filepath.Join(dir, "fetches.db")},
		{Backend: config.BackendJSON, DSN: filepath.Join(dir, "fetches.ndjson")},
		{Backend: config.BackendCSV, DSN: filepath.Join(dir, "fetches.csv")},
	} {
		b, err := OpenStorage(ctx, tc)
		require.NoError(t, err, tc.Backend)
		require.NotNil(t, b, tc.Backend)
		require.NoError(t, b.Close(), tc.Backend)
	}

	_, err = OpenStorage(ctx, config.StorageConfig{Backend: "mongo"})
	require.Error(t, err)
}
