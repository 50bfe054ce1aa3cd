// Package pipeline runs the crawl-and-report cycle for a source: fetch,
// normalize, filter, diff against known listings, notify and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/fwojciec/flatfinder"
	"github.com/google/uuid"
)

// PaginationPolicy decides which runs of a Pipeline traverse all pages of
// a source instead of only the first one. Sources without a next page
// selector never paginate.
type PaginationPolicy int

const (
	// PaginateFirstRun paginates on the first fetch of a Pipeline only.
	// Later runs of the same instance read the first page, which is where
	// new listings appear.
	PaginateFirstRun PaginationPolicy = iota
	// PaginateEveryRun paginates on every run.
	PaginateEveryRun
	// PaginateNever reads only the first page.
	PaginateNever
)

func (p PaginationPolicy) String() string {
	switch p {
	case PaginateFirstRun:
		return "first-run"
	case PaginateEveryRun:
		return "every-run"
	case PaginateNever:
		return "never"
	}
	return fmt.Sprintf("PaginationPolicy(%d)", int(p))
}

// ParsePaginationPolicy parses the String form of a policy.
func ParsePaginationPolicy(s string) (PaginationPolicy, error) {
	switch s {
	case "", "first-run":
		return PaginateFirstRun, nil
	case "every-run":
		return PaginateEveryRun, nil
	case "never":
		return PaginateNever, nil
	}
	return 0, flatfinder.Errorf(flatfinder.EINVALID, "unknown pagination policy %q", s)
}

// Pipeline executes crawl-and-report cycles for one source.
//
// Runs of the same Pipeline must not overlap: the caller serializes them,
// as Scheduler does. Pipelines of different sources are independent.
type Pipeline struct {
	source   *flatfinder.Source
	fetcher  flatfinder.ListingFetcher
	notifier flatfinder.Notifier
	store    flatfinder.KnownListingService
	logger   *slog.Logger
	policy   PaginationPolicy

	fullCrawl atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPagination sets the pagination policy. Defaults to PaginateFirstRun.
func WithPagination(policy PaginationPolicy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// New creates a Pipeline for source. The source is validated and all
// collaborators are required.
func New(
	source *flatfinder.Source,
	fetcher flatfinder.ListingFetcher,
	notifier flatfinder.Notifier,
	store flatfinder.KnownListingService,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "source required")
	}
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || notifier == nil || store == nil {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "source %s: fetcher, notifier and store required", source.Name)
	}

	p := &Pipeline{
		source:   source,
		fetcher:  fetcher,
		notifier: notifier,
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		policy:   PaginateFirstRun,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.fullCrawl.Store(p.policy != PaginateNever)

	return p, nil
}

// Source returns the source the pipeline runs for.
func (p *Pipeline) Source() *flatfinder.Source {
	return p.source
}

// FullCrawl reports whether the next fetch would paginate, given that the
// source defines a next page selector.
func (p *Pipeline) FullCrawl() bool {
	return p.fullCrawl.Load()
}

// Run executes one cycle and returns the new listings. It is the failure
// boundary of a run: finding nothing new is logged quietly, any other error
// is logged with its class. Both yield nil, and the known listings are left
// untouched unless every step up to persistence succeeded.
func (p *Pipeline) Run(ctx context.Context) []flatfinder.Listing {
	logger := p.logger.With("source", p.source.Name, "run_id", uuid.New().String())

	listings, err := p.executeSafely(ctx, logger)
	switch flatfinder.Classify(err) {
	case flatfinder.ClassNone:
		return listings
	case flatfinder.ClassNoNewListings:
		logger.Info("no new listings since last invocation")
	default:
		logger.Error("run failed",
			"class", string(flatfinder.Classify(err)),
			"err", err,
		)
	}
	return nil
}

// Execute executes one cycle and returns the new listings, or
// flatfinder.ErrNoNewListings when every fetched listing is already known.
// Other errors are *flatfinder.FetchError, *flatfinder.NormalizeError or
// *flatfinder.StoreError.
//
// A panic in a source hook or collaborator is returned as an error.
func (p *Pipeline) Execute(ctx context.Context) ([]flatfinder.Listing, error) {
	return p.executeSafely(ctx, p.logger.With("source", p.source.Name))
}

func (p *Pipeline) executeSafely(ctx context.Context, logger *slog.Logger) (listings []flatfinder.Listing, err error) {
	defer recoverPanic(&err, "run")
	return p.execute(ctx, logger)
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger) ([]flatfinder.Listing, error) {
	raw, err := p.fetch(ctx, logger)
	if err != nil {
		return nil, err
	}

	listings, err := p.normalize(raw)
	if err != nil {
		return nil, err
	}

	if listings, err = p.filter(listings); err != nil {
		return nil, err
	}

	newListings, err := p.findNew(ctx, listings)
	if err != nil {
		return nil, err
	}

	logger.Info("new listings", "count", len(newListings))
	p.notify(ctx, logger, newListings)

	// Notification has been attempted, so a shutdown arriving now must not
	// keep the listings from being recorded.
	if err := p.store.RecordNew(context.WithoutCancel(ctx), p.source.Name, flatfinder.ListingIDs(newListings)); err != nil {
		return nil, &flatfinder.StoreError{Source: p.source.Name, Op: "record", Err: err}
	}

	return newListings, nil
}

// fetch scrapes the source. The full crawl flag is consumed here, before
// the outcome of the run is known.
func (p *Pipeline) fetch(ctx context.Context, logger *slog.Logger) ([]flatfinder.RawListing, error) {
	paginate := false
	if p.source.Paginates() {
		switch p.policy {
		case PaginateEveryRun:
			paginate = true
		case PaginateFirstRun:
			paginate = p.fullCrawl.CompareAndSwap(true, false)
		}
	}

	req := p.source.FetchRequest(paginate)
	logger.Debug("fetching listings", "url", req.URL, "paginate", paginate)

	raw, err := p.fetcher.FetchListings(ctx, req)
	var fetchErr *flatfinder.FetchError
	switch {
	case err == nil:
		return raw, nil
	case errors.As(err, &fetchErr):
		if fetchErr.Source == "" {
			fetchErr.Source = p.source.Name
		}
		return nil, err
	case flatfinder.ErrorCode(err) == flatfinder.EINVALID:
		// Invalid selectors are source descriptor bugs, not fetch failures.
		return nil, err
	}
	return nil, &flatfinder.FetchError{Source: p.source.Name, URL: req.URL, Err: err}
}

func (p *Pipeline) normalize(raw []flatfinder.RawListing) ([]flatfinder.Listing, error) {
	listings := make([]flatfinder.Listing, 0, len(raw))
	for i, r := range raw {
		l, err := p.normalizeOne(r)
		if err != nil {
			return nil, &flatfinder.NormalizeError{Source: p.source.Name, Index: i, Err: err}
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func (p *Pipeline) normalizeOne(r flatfinder.RawListing) (l flatfinder.Listing, err error) {
	defer recoverPanic(&err, "normalize")
	return p.source.Normalize(r)
}

func (p *Pipeline) filter(listings []flatfinder.Listing) ([]flatfinder.Listing, error) {
	kept := make([]flatfinder.Listing, 0, len(listings))
	for _, l := range listings {
		keep, err := p.keep(l)
		if err != nil {
			return nil, fmt.Errorf("filter listing %s: %w", l.ID, err)
		}
		if keep {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

func (p *Pipeline) keep(l flatfinder.Listing) (keep bool, err error) {
	defer recoverPanic(&err, "filter")
	return p.source.Keep(l), nil
}

// recoverPanic turns a panic into an error assigned to *err. It must be
// deferred directly.
func recoverPanic(err *error, step string) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("%s: panic: %v", step, v)
	}
}

func (p *Pipeline) findNew(ctx context.Context, listings []flatfinder.Listing) ([]flatfinder.Listing, error) {
	ids, err := p.store.FindKnownIDs(ctx, p.source.Name)
	if err != nil {
		return nil, &flatfinder.StoreError{Source: p.source.Name, Op: "load", Err: err}
	}

	newListings := flatfinder.NewKnownSet(ids).Diff(listings)
	if len(newListings) == 0 {
		return nil, flatfinder.ErrNoNewListings
	}
	return newListings, nil
}
