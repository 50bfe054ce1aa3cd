package goquery

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/bloom"
)

// DefaultMaxPages caps paginated traversal when the request sets no limit.
const DefaultMaxPages = 50

// visitedFalsePositiveRate sizes the Bloom filter of visited pages.
const visitedFalsePositiveRate = 0.001

// Ensure ListingFetcher implements flatfinder.ListingFetcher at compile time.
var _ flatfinder.ListingFetcher = (*ListingFetcher)(nil)

// ListingFetcher scrapes listing records from pages retrieved by a
// flatfinder.Fetcher.
type ListingFetcher struct {
	fetcher     flatfinder.Fetcher
	maxPages    int
	retryDelays []time.Duration
}

// Option configures a ListingFetcher.
type Option func(*ListingFetcher)

// WithMaxPages sets the page ceiling for paginated requests that do not set
// their own. Defaults to DefaultMaxPages, which also replaces n <= 0.
func WithMaxPages(n int) Option {
	return func(f *ListingFetcher) {
		if n <= 0 {
			n = DefaultMaxPages
		}
		f.maxPages = n
	}
}

// NewListingFetcher creates a ListingFetcher that retrieves pages with fetcher.
func NewListingFetcher(fetcher flatfinder.Fetcher, opts ...Option) *ListingFetcher {
	f := &ListingFetcher{
		fetcher:     fetcher,
		maxPages:    DefaultMaxPages,
		retryDelays: DefaultRetryDelays(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchListings scrapes req.URL and, when req.NextPage is set, follows next
// page links until none is found, a page repeats or the page limit is hit.
//
// Failed page fetches are retried with backoff. Selector syntax errors
// are returned as EINVALID before anything is fetched. Transport errors and a container that matches nothing on the
// first page are returned as *flatfinder.FetchError.
func (f *ListingFetcher) FetchListings(ctx context.Context, req flatfinder.FetchRequest) ([]flatfinder.RawListing, error) {
	if req.Container == "" {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "container selector required")
	}
	fields, err := ParseFieldSelectors(req.Fields)
	if err != nil {
		return nil, err
	}

	maxPages := 1
	var next FieldSelector
	if req.Paginate() {
		if next, err = ParseFieldSelector(req.NextPage); err != nil {
			return nil, flatfinder.Errorf(flatfinder.EINVALID, "next page: %s", flatfinder.ErrorMessage(err))
		}
		maxPages = req.MaxPages
		if maxPages <= 0 {
			maxPages = f.maxPages
		}
	}

	visited := bloom.NewFilter(uint(maxPages), visitedFalsePositiveRate)

	var records []flatfinder.RawListing
	pageURL := req.URL
	for page := 0; page < maxPages && pageURL != ""; page++ {
		if visited.Visit(pageURL) {
			break
		}

		html, err := fetchWithRetry(ctx, f.fetcher, pageURL, f.retryDelays)
		if err != nil {
			return nil, &flatfinder.FetchError{URL: pageURL, Err: err}
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, &flatfinder.FetchError{URL: pageURL, Err: err}
		}

		if page == 0 && doc.Find(req.Container).Length() == 0 {
			return nil, &flatfinder.FetchError{
				URL: pageURL,
				Err: flatfinder.Errorf(flatfinder.ENOTFOUND, "container %q matched nothing", req.Container),
			}
		}

		pageRecords, err := extract(doc, req.Container, fields)
		if err != nil {
			return nil, err
		}
		if len(pageRecords) == 0 {
			break
		}
		records = append(records, pageRecords...)

		if !req.Paginate() {
			break
		}
		if pageURL, err = nextPageURL(doc, pageURL, next); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// resolveURL resolves href against base.
func resolveURL(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", flatfinder.Errorf(flatfinder.EINVALID, "invalid base URL: %v", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", nil
	}
	resolved := b.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "#")
}
