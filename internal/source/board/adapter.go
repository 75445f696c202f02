package board

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/source"
)

// DefaultWait bounds how long a renderer waits for results to appear.
const DefaultWait = 10 * time.Second

// RenderRequest asks a renderer for the HTML of URL once Wait matches.
type RenderRequest struct {
	URL     string
	Wait    string
	Timeout time.Duration
}

// Renderer produces the HTML of a search page.
//
// Render returns an error wrapping source.ErrTimeout when Wait does not
// match within Timeout. Implementations release any browser or network
// resources before returning.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// RenderError is returned by renderers that got a response from the origin
// but could not use it.
type RenderError struct {
	StatusCode int
	Detection  string
	Err        error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "render failed"
}

func (e *RenderError) Unwrap() error { return e.Err }

// Adapter is a source.Adapter for one board.
type Adapter struct {
	board    Board
	renderer Renderer
	wait     time.Duration
	logger   *slog.Logger
}

var _ source.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithWait overrides DefaultWait.
func WithWait(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.wait = d
		}
	}
}

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an adapter scraping b through r.
func New(b Board, r Renderer, opts ...Option) *Adapter {
	a := &Adapter{
		board:    b,
		renderer: r,
		wait:     DefaultWait,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Source() listing.Source { return a.board.Source }

// Fetch renders the board's search page for q and parses up to
// q.MaxResults cards.
func (a *Adapter) Fetch(ctx context.Context, q listing.Query) ([]listing.Listing, error) {
	target := a.board.SearchURL(q)

	html, err := a.renderer.Render(ctx, RenderRequest{
		URL:     target,
		Wait:    a.board.Wait,
		Timeout: a.wait,
	})
	if err != nil {
		ue := source.Unavailable(a.board.Source, target, err)
		var re *RenderError
		if errors.As(err, &re) {
			ue.StatusCode = re.StatusCode
			ue.Detection = re.Detection
		}
		return nil, ue
	}

	out, err := Parse(html, a.board, q.MaxResults)
	if err != nil {
		return nil, source.Unavailable(a.board.Source, target, err)
	}
	a.logger.Debug("board parsed", "source", a.board.Source, "url", target, "listings", len(out))
	return out, nil
}
