package mock

import (
	"context"

	"github.com/fwojciec/flatfinder"
)

var (
	_ flatfinder.Fetcher        = (*Fetcher)(nil)
	_ flatfinder.ListingFetcher = (*ListingFetcher)(nil)
	_ flatfinder.DomainLimiter  = (*DomainLimiter)(nil)
)

// Fetcher is a mock implementation of flatfinder.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

// ListingFetcher is a mock implementation of flatfinder.ListingFetcher.
type ListingFetcher struct {
	FetchListingsFn func(ctx context.Context, req flatfinder.FetchRequest) ([]flatfinder.RawListing, error)
}

func (f *ListingFetcher) FetchListings(ctx context.Context, req flatfinder.FetchRequest) ([]flatfinder.RawListing, error) {
	return f.FetchListingsFn(ctx, req)
}

// DomainLimiter is a mock implementation of flatfinder.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
