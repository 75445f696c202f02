// Package config loads runtime settings from defaults, an optional YAML
// file, a .env file and INTERNSIFT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/FranksOps/internsift/internal/classify"
	"github.com/FranksOps/internsift/internal/fingerprint"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/pkg/useragent"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// INTERNSIFT_BROWSER_WAIT_TIMEOUT=15s.
const EnvPrefix = "INTERNSIFT"

const (
	RendererPlaywright = "playwright"
	RendererStatic     = "static"
)

const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendJSON     = "json"
	BackendCSV      = "csv"
)

var (
	renderers = []string{RendererPlaywright, RendererStatic}
	backends  = []string{BackendNone, BackendSQLite, BackendPostgres, BackendJSON, BackendCSV}
	formats   = []string{"text", "json"}
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BoardBases overrides the origin of each job board.
type BoardBases struct {
	Indeed    string `mapstructure:"indeed"`
	LinkedIn  string `mapstructure:"linkedin"`
	Glassdoor string `mapstructure:"glassdoor"`
}

type BrowserConfig struct {
	Renderer      string        `mapstructure:"renderer"`
	Headless      bool          `mapstructure:"headless"`
	InstallDriver bool          `mapstructure:"install_driver"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Base          BoardBases    `mapstructure:"base"`
}

type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Fingerprint string        `mapstructure:"fingerprint"`
	RPS         float64       `mapstructure:"rps"`
	Jitter      float64       `mapstructure:"jitter"`
	HostRPS     float64       `mapstructure:"host_rps"`
	HostBurst   int           `mapstructure:"host_burst"`
	ProxiesFile string        `mapstructure:"proxies_file"`
	UserAgents  string        `mapstructure:"user_agents"`
	CookieJar   bool          `mapstructure:"cookie_jar"`
}

type SerpAPIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type JSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Host     string `mapstructure:"host"`
}

type ExtractConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SkillsFile string `mapstructure:"skills_file"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// DSN is a connection string for postgres and a file path otherwise.
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Config is the complete runtime configuration.
type Config struct {
	Log           LogConfig     `mapstructure:"log"`
	DefaultSource string        `mapstructure:"default_source"`
	Policy        string        `mapstructure:"policy"`
	PoliciesFile  string        `mapstructure:"policies_file"`
	Browser       BrowserConfig `mapstructure:"browser"`
	HTTP          HTTPConfig    `mapstructure:"http"`
	SerpAPI       SerpAPIConfig `mapstructure:"serpapi"`
	JSearch       JSearchConfig `mapstructure:"jsearch"`
	Extract       ExtractConfig `mapstructure:"extract"`
	Storage       StorageConfig `mapstructure:"storage"`
	Server        ServerConfig  `mapstructure:"server"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("default_source", string(listing.SourceJSearch))
	v.SetDefault("policy", classify.PolicyLoose)
	v.SetDefault("policies_file", "")

	v.SetDefault("browser.renderer", RendererPlaywright)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.install_driver", false)
	v.SetDefault("browser.wait_timeout", 10*time.Second)
	v.SetDefault("browser.respect_robots", false)
	v.SetDefault("browser.base.indeed", "")
	v.SetDefault("browser.base.linkedin", "")
	v.SetDefault("browser.base.glassdoor", "")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("http.rps", 0.0)
	v.SetDefault("http.jitter", 0.0)
	v.SetDefault("http.host_rps", 1.0)
	v.SetDefault("http.host_burst", 2)
	v.SetDefault("http.proxies_file", "")
	v.SetDefault("http.user_agents", string(useragent.Sequential))
	v.SetDefault("http.cookie_jar", false)

	v.SetDefault("serpapi.api_key", "")
	v.SetDefault("serpapi.endpoint", "")
	v.SetDefault("jsearch.api_key", "")
	v.SetDefault("jsearch.endpoint", "")
	v.SetDefault("jsearch.host", "")

	v.SetDefault("extract.enabled", true)
	v.SetDefault("extract.skills_file", "")

	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.dsn", "")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// Load reads configuration. path may be empty, in which case only
// defaults and the environment apply. A .env file in the working directory
// is loaded first; variables already set in the environment win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Credentials are also accepted under the names the providers document.
	if err := v.BindEnv("serpapi.api_key", EnvPrefix+"_SERPAPI_API_KEY", "SERPAPI_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}
	if err := v.BindEnv("jsearch.api_key", EnvPrefix+"_JSEARCH_API_KEY", "RAPIDAPI_KEY"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.DefaultSource = string(listing.ParseSource(c.DefaultSource))
	c.Policy = strings.ToLower(strings.TrimSpace(c.Policy))
	c.Browser.Renderer = strings.ToLower(strings.TrimSpace(c.Browser.Renderer))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendNone
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q (want %s)", c.Log.Format, strings.Join(formats, ", ")))
	}
	if !listing.Source(c.DefaultSource).Known() {
		errs = append(errs, fmt.Errorf("default_source: unknown source %q", c.DefaultSource))
	}
	// Named policies from a file are checked when the file is loaded.
	if c.PoliciesFile == "" {
		if _, err := classify.DefaultPolicies().Lookup(c.Policy); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}

	if !slices.Contains(renderers, c.Browser.Renderer) {
		errs = append(errs, fmt.Errorf("browser.renderer: unknown renderer %q (want %s)", c.Browser.Renderer, strings.Join(renderers, ", ")))
	}
	if c.Browser.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("browser.wait_timeout: must be positive, got %s", c.Browser.WaitTimeout))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout: must be positive, got %s", c.HTTP.Timeout))
	}
	if _, err := fingerprint.ParseProfile(c.HTTP.Fingerprint); err != nil {
		errs = append(errs, fmt.Errorf("http.fingerprint: %w", err))
	}
	if _, err := useragent.ParseStrategy(c.HTTP.UserAgents); err != nil {
		errs = append(errs, fmt.Errorf("http.user_agents: %w", err))
	}
	if c.HTTP.RPS < 0 || c.HTTP.HostRPS < 0 {
		errs = append(errs, errors.New("http: rates must not be negative"))
	}
	if c.HTTP.Jitter < 0 || c.HTTP.Jitter > 1 {
		errs = append(errs, fmt.Errorf("http.jitter: must be within [0, 1], got %v", c.HTTP.Jitter))
	}

	if !slices.Contains(backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q (want %s)", c.Storage.Backend, strings.Join(backends, ", ")))
	} else if c.Storage.Backend != BackendNone && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn: required for backend %q", c.Storage.Backend))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port: invalid port %d", c.Metrics.Port))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
	return lvl, nil
}

// NewLogger builds the configured slog handler writing to w. An invalid
// level falls back to info.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
