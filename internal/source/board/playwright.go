package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/FranksOps/internsift/internal/bypass"
	"github.com/FranksOps/internsift/internal/metrics"
	"github.com/FranksOps/internsift/internal/source"
	"github.com/FranksOps/internsift/pkg/proxy"
	"github.com/FranksOps/internsift/pkg/useragent"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightConfig configures a PlaywrightRenderer.
type PlaywrightConfig struct {
	Headless bool
	// InstallDriver downloads the driver and Chromium on first use.
	InstallDriver bool
	UAPool        *useragent.Pool
	ProxyPool     *proxy.Pool
	Logger        *slog.Logger
}

// PlaywrightRenderer renders pages in headless Chromium. The driver process
// is started once and shared; every Render launches its own browser and
// closes it before returning.
type PlaywrightRenderer struct {
	cfg    PlaywrightConfig
	logger *slog.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

var _ Renderer = (*PlaywrightRenderer)(nil)

// NewPlaywrightRenderer creates a renderer. The driver starts lazily on the
// first Render.
func NewPlaywrightRenderer(cfg PlaywrightConfig) *PlaywrightRenderer {
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaywrightRenderer{cfg: cfg, logger: logger}
}

func (r *PlaywrightRenderer) driver() (*playwright.Playwright, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pw != nil {
		return r.pw, nil
	}
	if r.cfg.InstallDriver {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("board: install playwright: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("board: start playwright: %w", err)
	}
	r.pw = pw
	return pw, nil
}

// Render opens req.URL in a fresh browser, waits up to req.Timeout for
// req.Wait to attach and returns the page HTML.
func (r *PlaywrightRenderer) Render(ctx context.Context, req RenderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pw, err := r.driver()
	if err != nil {
		return "", err
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.cfg.Headless),
	}
	proxyURL := r.cfg.ProxyPool.Next()
	if proxyURL != nil {
		launch.Proxy = &playwright.Proxy{Server: proxyURL.String()}
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		return "", fmt.Errorf("board: launch chromium: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			r.logger.Debug("browser close failed", "err", err)
		}
	}()

	// Closing the browser aborts whatever call is in flight when the
	// caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = browser.Close() })
	defer stop()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(r.cfg.UAPool.Next()),
		Locale:    playwright.String("en-US"),
	})
	if err != nil {
		return "", r.abandoned(ctx, fmt.Errorf("board: new context: %w", err))
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return "", r.abandoned(ctx, fmt.Errorf("board: new page: %w", err))
	}

	timeoutMs := playwright.Float(float64(req.Timeout.Milliseconds()))
	resp, err := page.Goto(req.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMs,
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return "", fmt.Errorf("%w: navigation to %s", source.ErrTimeout, req.URL)
		}
		if ctx.Err() == nil && proxyURL != nil {
			_ = r.cfg.ProxyPool.MarkFailure(proxyURL)
			metrics.ProxyFailures.WithLabelValues(proxyURL.String()).Inc()
		}
		return "", r.abandoned(ctx, fmt.Errorf("board: goto: %w", err))
	}
	if proxyURL != nil {
		_ = r.cfg.ProxyPool.MarkSuccess(proxyURL)
	}

	status := 0
	headers := http.Header{}
	if resp != nil {
		status = resp.Status()
		for k, v := range resp.Headers() {
			headers.Set(k, v)
		}
	}

	waitErr := page.Locator(req.Wait).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: timeoutMs,
	})
	if waitErr == nil {
		html, err := page.Content()
		if err != nil {
			return "", r.abandoned(ctx, fmt.Errorf("board: read content: %w", err))
		}
		return html, nil
	}
	if !errors.Is(waitErr, playwright.ErrTimeout) {
		return "", r.abandoned(ctx, fmt.Errorf("board: wait for %q: %w", req.Wait, waitErr))
	}

	// The results never appeared. Report a block page if that is what
	// was served instead.
	timeout := fmt.Errorf("%w: %q after %s", source.ErrTimeout, req.Wait, req.Timeout)
	html, _ := page.Content()
	if vendor, ok := bypass.Detect(bypass.Response{
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
	}, bypass.DefaultDetectors()); ok {
		return "", &RenderError{StatusCode: status, Detection: vendor, Err: timeout}
	}
	if status >= 400 {
		return "", &RenderError{StatusCode: status, Err: timeout}
	}
	return "", timeout
}

// abandoned prefers the caller's cancellation over the browser error it
// caused.
func (r *PlaywrightRenderer) abandoned(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Close stops the shared driver.
func (r *PlaywrightRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pw == nil {
		return nil
	}
	err := r.pw.Stop()
	r.pw = nil
	if err != nil {
		return fmt.Errorf("board: stop playwright: %w", err)
	}
	return nil
}
