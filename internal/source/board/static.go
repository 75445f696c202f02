package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/internsift/internal/scraper"
	"github.com/FranksOps/internsift/internal/source"
	"github.com/PuerkitoBio/goquery"
)

// ErrDisallowed is returned when robots.txt forbids the search page.
var ErrDisallowed = errors.New("board: disallowed by robots.txt")

// StaticRenderer fetches search pages over plain HTTP without executing
// scripts. It suits boards that server-render their results and test
// servers. A page whose result list is absent is reported as a wait
// timeout, since no amount of waiting would make it appear.
type StaticRenderer struct {
	fetcher *scraper.Fetcher
	robots  *scraper.RobotsPolicy
}

var _ Renderer = (*StaticRenderer)(nil)

// NewStaticRenderer renders through f. A non-nil robots policy is consulted
// before every request.
func NewStaticRenderer(f *scraper.Fetcher, robots *scraper.RobotsPolicy) *StaticRenderer {
	return &StaticRenderer{fetcher: f, robots: robots}
}

func (r *StaticRenderer) Render(ctx context.Context, req RenderRequest) (string, error) {
	if r.robots != nil {
		ok, err := r.robots.Allowed(ctx, req.URL, r.fetcher.UserAgent())
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrDisallowed
		}
	}

	fetchCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	res, err := r.fetcher.Get(fetchCtx, req.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %s", source.ErrTimeout, req.URL, req.Timeout)
		}
		return "", err
	}

	if res.DetectionSrc != "" {
		return "", &RenderError{
			StatusCode: res.StatusCode,
			Detection:  res.DetectionSrc,
			Err:        fmt.Errorf("board: blocked by %s", res.DetectionSrc),
		}
	}
	if !res.OK() {
		return "", &RenderError{
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("board: unexpected status %d", res.StatusCode),
		}
	}

	if req.Wait != "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
		if err != nil {
			return "", fmt.Errorf("board: parse page: %w", err)
		}
		if doc.Find(req.Wait).Length() == 0 {
			return "", fmt.Errorf("%w: %q not present", source.ErrTimeout, req.Wait)
		}
	}
	return string(res.Body), nil
}
