// Package pipeline runs queries through source adapters and the role
// classifier. An Orchestrator is built once from a registry and is safe for
// concurrent use; every Run owns its adapter invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/internsift/internal/classify"
	"github.com/FranksOps/internsift/internal/extract"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/metrics"
	"github.com/FranksOps/internsift/internal/source"
	"github.com/FranksOps/internsift/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidSource is returned when a query names a source that has no
// registered adapter.
var ErrInvalidSource = errors.New("invalid source")

// InvalidSourceError reports the rejected source and the supported ones.
type InvalidSourceError struct {
	Source    listing.Source
	Supported []listing.Source
}

func (e *InvalidSourceError) Error() string {
	names := make([]string, len(e.Supported))
	for i, s := range e.Supported {
		names[i] = s.String()
	}
	return fmt.Sprintf("%s %q (supported: %s)", ErrInvalidSource, e.Source, strings.Join(names, ", "))
}

func (e *InvalidSourceError) Unwrap() error { return ErrInvalidSource }

const recordTimeout = 5 * time.Second

// Config wires an Orchestrator.
type Config struct {
	Registry *source.Registry
	// DefaultSource is used when a query leaves Source empty.
	DefaultSource listing.Source
	// RoleSpec is the default filter. The zero value means classify.Loose.
	RoleSpec classify.RoleSpec
	// Extractor, if set, enriches matched listings.
	Extractor *extract.Extractor
	// Recorder, if set, receives one FetchRecord per adapter invocation.
	Recorder storage.Backend
	Logger   *slog.Logger
}

// Orchestrator validates, dispatches, filters and optionally enriches.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if len(cfg.RoleSpec.Include) == 0 {
		cfg.RoleSpec = classify.Loose
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = listing.SourceJSearch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, logger: logger}
}

// Sources returns the sources a query may name.
func (o *Orchestrator) Sources() []listing.Source {
	return o.cfg.Registry.Sources()
}

// DefaultSource returns the source used when a query names none.
func (o *Orchestrator) DefaultSource() listing.Source {
	return o.cfg.DefaultSource
}

// Option adjusts a single Run or RunMany call.
type Option func(*runOptions)

type runOptions struct {
	spec  classify.RoleSpec
	runID string
}

// WithRoleSpec filters with spec instead of the configured default.
func WithRoleSpec(spec classify.RoleSpec) Option {
	return func(ro *runOptions) { ro.spec = spec }
}

// WithRunID tags fetch records with id instead of a generated one.
func WithRunID(id string) Option {
	return func(ro *runOptions) {
		if id != "" {
			ro.runID = id
		}
	}
}

func (o *Orchestrator) options(opts []Option) runOptions {
	ro := runOptions{spec: o.cfg.RoleSpec}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.runID == "" {
		ro.runID = uuid.NewString()
	}
	return ro
}

// Run fetches q from its source and returns the listings whose titles match
// the role spec, in source order.
//
// Run fails only for an unsupported source (ErrInvalidSource), a malformed
// query (listing.ErrInvalidQuery) or caller cancellation. A source that
// cannot deliver yields an empty result.
func (o *Orchestrator) Run(ctx context.Context, q listing.Query, opts ...Option) ([]listing.Listing, error) {
	q = q.WithDefaults(o.cfg.DefaultSource)
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	adapter, err := o.lookup(q.Source)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, adapter, q, o.options(opts))
}

// RunMany runs q against every source concurrently and concatenates the
// results in the order sources were given. Every source is validated before
// anything is fetched. An empty sources list means q.Source.
func (o *Orchestrator) RunMany(ctx context.Context, q listing.Query, sources []listing.Source, opts ...Option) ([]listing.Listing, error) {
	q = q.WithDefaults(o.cfg.DefaultSource)
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if len(sources) == 0 {
		sources = []listing.Source{q.Source}
	}

	adapters := make([]source.Adapter, len(sources))
	for i, s := range sources {
		a, err := o.lookup(s)
		if err != nil {
			return nil, err
		}
		adapters[i] = a
	}

	ro := o.options(opts)
	results := make([][]listing.Listing, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		sq := q
		sq.Source = sources[i]
		g.Go(func() error {
			out, err := o.run(gctx, a, sq, ro)
			results[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]listing.Listing, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (o *Orchestrator) lookup(src listing.Source) (source.Adapter, error) {
	a, ok := o.cfg.Registry.Lookup(src)
	if !ok {
		return nil, &InvalidSourceError{Source: src, Supported: o.cfg.Registry.Sources()}
	}
	return a, nil
}

func (o *Orchestrator) run(ctx context.Context, a source.Adapter, q listing.Query, ro runOptions) ([]listing.Listing, error) {
	src := q.Source.String()
	logger := o.logger.With("source", src, "run_id", ro.runID)

	start := time.Now()
	fetched, err := a.Fetch(ctx, q)
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.RecordFetch(src, string(source.OutcomeCanceled), elapsed)
		o.record(ctx, ro.runID, q, source.OutcomeCanceled, ctxErr, 0, 0, elapsed)
		return nil, ctxErr
	}

	outcome := source.Classify(len(fetched), err)
	if err != nil {
		attrs := []any{"outcome", outcome, "err", err}
		var ue *source.UnavailableError
		if errors.As(err, &ue) {
			attrs = append(attrs, "url", ue.URL, "status", ue.StatusCode)
		}
		logger.Warn("source unavailable, returning no listings", attrs...)
		fetched = nil
	}
	fetched = source.Cap(fetched, q.MaxResults)

	incomplete := 0
	for _, l := range fetched {
		if l.Incomplete() {
			incomplete++
		}
	}

	matched := classify.Filter(fetched, ro.spec)
	if o.cfg.Extractor != nil {
		for i := range matched {
			matched[i] = o.cfg.Extractor.Enrich(matched[i])
		}
	}

	metrics.RecordFetch(src, string(outcome), elapsed)
	metrics.RecordListings(src, "fetched", len(fetched))
	metrics.RecordListings(src, "incomplete", incomplete)
	metrics.RecordListings(src, "matched", len(matched))
	o.record(ctx, ro.runID, q, outcome, err, len(fetched), len(matched), elapsed)

	logger.Info("fetch complete",
		"outcome", outcome,
		"fetched", len(fetched),
		"incomplete", incomplete,
		"matched", len(matched),
		"policy", ro.spec.Name,
		"duration", elapsed,
	)
	return matched, nil
}

// record appends a FetchRecord when a recorder is configured. Failures are
// logged and otherwise ignored.
func (o *Orchestrator) record(ctx context.Context, runID string, q listing.Query, outcome source.Outcome, fetchErr error, fetched, matched int, elapsed time.Duration) {
	if o.cfg.Recorder == nil {
		return
	}

	rec := &storage.FetchRecord{
		ID:         uuid.NewString(),
		RunID:      runID,
		Source:     q.Source.String(),
		Terms:      q.Terms,
		Location:   q.Location,
		MaxResults: q.MaxResults,
		Outcome:    string(outcome),
		Fetched:    fetched,
		Matched:    matched,
		Duration:   elapsed,
		CreatedAt:  time.Now().UTC(),
	}
	if fetchErr != nil {
		rec.Error = fetchErr.Error()
		var ue *source.UnavailableError
		if errors.As(fetchErr, &ue) {
			rec.StatusCode = ue.StatusCode
			rec.DetectionSrc = ue.Detection
			rec.DetectedBot = ue.Detection != ""
		}
	}

	// The record outlives a canceled request.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := o.cfg.Recorder.Save(saveCtx, rec); err != nil {
		o.logger.Warn("failed to save fetch record", "source", rec.Source, "err", err)
	}
}
