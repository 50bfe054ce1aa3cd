// Package slog provides log/slog decorators for flatfinder services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/flatfinder"
)

// Ensure LoggingListingFetcher implements flatfinder.ListingFetcher.
var _ flatfinder.ListingFetcher = (*LoggingListingFetcher)(nil)

// LoggingListingFetcher wraps a ListingFetcher with logging of each scrape.
type LoggingListingFetcher struct {
	next   flatfinder.ListingFetcher
	logger *slog.Logger
}

// NewLoggingListingFetcher creates a new LoggingListingFetcher.
func NewLoggingListingFetcher(next flatfinder.ListingFetcher, logger *slog.Logger) *LoggingListingFetcher {
	return &LoggingListingFetcher{next: next, logger: logger}
}

// FetchListings delegates to the wrapped fetcher and logs the result.
func (f *LoggingListingFetcher) FetchListings(ctx context.Context, req flatfinder.FetchRequest) (records []flatfinder.RawListing, err error) {
	defer func(begin time.Time) {
		f.logger.Info("fetch listings",
			"url", req.URL,
			"paginate", req.Paginate(),
			"count", len(records),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.FetchListings(ctx, req)
}
