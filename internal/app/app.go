// Package app assembles the pipeline and its collaborators from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/internsift/internal/classify"
	"github.com/FranksOps/internsift/internal/config"
	"github.com/FranksOps/internsift/internal/extract"
	"github.com/FranksOps/internsift/internal/fingerprint"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/pipeline"
	"github.com/FranksOps/internsift/internal/scraper"
	"github.com/FranksOps/internsift/internal/source"
	"github.com/FranksOps/internsift/internal/source/board"
	"github.com/FranksOps/internsift/internal/source/searchapi"
	"github.com/FranksOps/internsift/internal/storage"
	"github.com/FranksOps/internsift/internal/storage/csvbackend"
	"github.com/FranksOps/internsift/internal/storage/jsonbackend"
	"github.com/FranksOps/internsift/internal/storage/postgres"
	"github.com/FranksOps/internsift/internal/storage/sqlite"
	"github.com/FranksOps/internsift/pkg/proxy"
	"github.com/FranksOps/internsift/pkg/ratelimit"
	"github.com/FranksOps/internsift/pkg/useragent"
)

// App holds everything a command needs. Close releases it.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Policies     classify.Policies
	RoleSpec     classify.RoleSpec
	Extractor    *extract.Extractor
	Storage      storage.Backend
	Orchestrator *pipeline.Orchestrator

	uaPool  *useragent.Pool
	proxies *proxy.Pool
	closers []func() error
}

// New validates cfg and builds the application. On error everything opened
// so far is released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Policies = classify.DefaultPolicies()
	if cfg.PoliciesFile != "" {
		if a.Policies, err = classify.LoadPolicies(cfg.PoliciesFile); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	if a.RoleSpec, err = a.Policies.Lookup(cfg.Policy); err != nil {
		return nil, fmt.Errorf("app: policy: %w", err)
	}

	if err := a.loadPools(); err != nil {
		return nil, err
	}
	fetcher, err := a.newFetcher()
	if err != nil {
		return nil, err
	}

	renderer, err := a.newRenderer(fetcher)
	if err != nil {
		return nil, err
	}

	registry := source.NewRegistry(a.adapters(fetcher, renderer)...)

	if a.Storage, err = OpenStorage(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	if a.Storage != nil {
		a.closers = append(a.closers, a.Storage.Close)
	}

	if cfg.Extract.Enabled {
		loader := extract.Builtin()
		if cfg.Extract.SkillsFile != "" {
			loader = extract.FileLoader(cfg.Extract.SkillsFile)
		}
		a.Extractor = extract.New(loader, logger)
	}

	pcfg := pipeline.Config{
		Registry:      registry,
		DefaultSource: listing.Source(cfg.DefaultSource),
		RoleSpec:      a.RoleSpec,
		Extractor:     a.Extractor,
		Logger:        logger,
	}
	if a.Storage != nil {
		pcfg.Recorder = a.Storage
	}
	a.Orchestrator = pipeline.New(pcfg)

	logger.Debug("app ready",
		"sources", registry.Sources(),
		"default_source", cfg.DefaultSource,
		"policy", a.RoleSpec.Name,
		"renderer", cfg.Browser.Renderer,
		"storage", cfg.Storage.Backend,
	)
	return a, nil
}

// loadPools builds the User-Agent and proxy pools shared by the fetcher
// and the browser.
func (a *App) loadPools() error {
	hc := a.Config.HTTP

	strategy, err := useragent.ParseStrategy(hc.UserAgents)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.uaPool = useragent.NewPoolWithStrategy(nil, strategy)

	if hc.ProxiesFile != "" {
		a.proxies = proxy.NewPool(proxy.Config{})
		if err := a.proxies.LoadFile(hc.ProxiesFile); err != nil {
			return fmt.Errorf("app: proxies: %w", err)
		}
		a.Logger.Info("proxy pool loaded", "proxies", a.proxies.Len())
	}
	return nil
}

func (a *App) newFetcher() (*scraper.Fetcher, error) {
	hc := a.Config.HTTP

	profile, err := fingerprint.ParseProfile(hc.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	limiter := ratelimit.NewLimiter(hc.RPS, hc.Jitter)
	a.closers = append(a.closers, func() error { limiter.Stop(); return nil })

	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      hc.Timeout,
		UseCookieJar: hc.CookieJar,
		ProxyPool:    a.proxies,
		UAPool:       a.uaPool,
		Fingerprint:  profile,
		Limiter:      limiter,
		HostLimiter:  ratelimit.NewHostLimiter(hc.HostRPS, hc.HostBurst),
		Logger:       a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func() error { f.Close(); return nil })
	return f, nil
}

func (a *App) newRenderer(f *scraper.Fetcher) (board.Renderer, error) {
	bc := a.Config.Browser
	switch bc.Renderer {
	case config.RendererStatic:
		var robots *scraper.RobotsPolicy
		if bc.RespectRobots {
			robots = scraper.NewRobotsPolicy(f, a.Logger)
		}
		return board.NewStaticRenderer(f, robots), nil
	case config.RendererPlaywright:
		r := board.NewPlaywrightRenderer(board.PlaywrightConfig{
			Headless:      bc.Headless,
			InstallDriver: bc.InstallDriver,
			UAPool:        a.uaPool,
			ProxyPool:     a.proxies,
			Logger:        a.Logger,
		})
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		return nil, fmt.Errorf("app: unknown renderer %q", bc.Renderer)
	}
}

func (a *App) adapters(f *scraper.Fetcher, r board.Renderer) []source.Adapter {
	cfg := a.Config
	bases := map[listing.Source]string{
		listing.SourceIndeed:    cfg.Browser.Base.Indeed,
		listing.SourceLinkedIn:  cfg.Browser.Base.LinkedIn,
		listing.SourceGlassdoor: cfg.Browser.Base.Glassdoor,
	}

	var out []source.Adapter
	for src, b := range board.Boards() {
		out = append(out, board.New(b.WithBase(bases[src]), r,
			board.WithWait(cfg.Browser.WaitTimeout),
			board.WithLogger(a.Logger),
		))
	}

	out = append(out,
		searchapi.NewSerpAPI(f, searchapi.SerpAPIConfig{
			APIKey:   cfg.SerpAPI.APIKey,
			Endpoint: cfg.SerpAPI.Endpoint,
			Logger:   a.Logger,
		}),
		searchapi.NewJSearch(f, searchapi.JSearchConfig{
			APIKey:   cfg.JSearch.APIKey,
			Endpoint: cfg.JSearch.Endpoint,
			Host:     cfg.JSearch.Host,
			Logger:   a.Logger,
		}),
	)
	return out
}

// OpenStorage opens the configured fetch log. It returns nil for the "none"
// backend.
func OpenStorage(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch sc.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendSQLite:
		b, err = sqlite.New(sc.DSN)
	case config.BackendPostgres:
		b, err = postgres.New(ctx, sc.DSN)
	case config.BackendJSON:
		b, err = jsonbackend.New(sc.DSN)
	case config.BackendCSV:
		b, err = csvbackend.New(sc.DSN)
	default:
		return nil, fmt.Errorf("app: unknown storage backend %q", sc.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("app: open %s storage: %w", sc.Backend, err)
	}
	return b, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
