package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "jsearch", cfg.DefaultSource)
	assert.Equal(t, "loose", cfg.Policy)
	assert.Equal(t, RendererPlaywright, cfg.Browser.Renderer)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, BackendNone, cfg.Storage.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Extract.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "internsift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_source: serpapi
policy: strict
browser:
  renderer: static
  wait_timeout: 2s
  base:
    indeed: http://127.0.0.1:9999
storage:
  backend: sqlite
  dsn: /tmp/fetches.db
`), 0o600))

	t.Setenv("INTERNSIFT_HTTP_TIMEOUT", "5s")
	t.Setenv("INTERNSIFT_LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serpapi", cfg.DefaultSource)
	assert.Equal(t, "strict", cfg.Policy)
	assert.Equal(t, RendererStatic, cfg.Browser.Renderer)
	assert.Equal(t, 2*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Browser.Base.Indeed)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProviderKeys(t *testing.T) {
	t.Setenv("SERPAPI_API_KEY", "serp-key")
	t.Setenv("RAPIDAPI_KEY", "rapid-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "serp-key", cfg.SerpAPI.APIKey)
	assert.Equal(t, "rapid-key", cfg.JSearch.APIKey)
}

func TestLoad_PrefixedKeyWins(t *testing.T) {
	t.Setenv("INTERNSIFT_JSEARCH_API_KEY", "prefixed")
	t.Setenv("RAPIDAPI_KEY", "provider")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.JSearch.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_Aggregates(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Browser.Renderer = "selenium"
	cfg.HTTP.Fingerprint = "netscape"
	cfg.Storage.Backend = "mongo"
	cfg.Policy = "lenient"
	cfg.DefaultSource = "carriercompass"

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"browser.renderer", "http.fingerprint", "storage.backend", "policy", "default_source"} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_StorageNeedsDSN(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Storage.Backend = BackendJSON
	require.ErrorContains(t, cfg.Validate(), "storage.dsn")

	cfg.Storage.DSN = filepath.Join(t.TempDir(), "fetches.ndjson")
	require.NoError(t, cfg.Validate())
}

func TestValidate_PolicyFromFileSkipsBuiltinCheck(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Policy = "backend"
	cfg.PoliciesFile = "policies.yaml"
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "source", "indeed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"source":"indeed"`)
}
