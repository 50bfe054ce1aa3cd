package flatfinder

import (
	"context"
	"net/url"
	"regexp"
)

// NormalizeFunc maps a raw scraped record to a Listing.
type NormalizeFunc func(RawListing) (Listing, error)

// FilterFunc reports whether a listing should be kept.
type FilterFunc func(Listing) bool

// FormatFunc composes the notification message for a listing.
type FormatFunc func(Listing) string

// Source describes one listings site: where to fetch, what to select and
// how to turn scraped records into listings. A Source is configuration;
// it carries no runtime state.
type Source struct {
	// Name identifies the source and namespaces its known listings.
	Name string

	// URL is the first listings page.
	URL string

	// Container selects one element per listing.
	Container string

	// Fields maps field names to field selectors evaluated inside the container.
	Fields map[string]string

	// NextPage selects the link to the following page. Empty disables pagination.
	NextPage string

	// MaxPages caps paginated traversal. Zero leaves the cap to the fetcher.
	MaxPages int

	// Render marks sources whose listings are only present after JavaScript runs.
	Render bool

	Normalize NormalizeFunc
	Filter    FilterFunc
	Format    FormatFunc
}

var sourceNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Validate returns an error if the source contains invalid fields.
func (s *Source) Validate() error {
	if s.Name == "" {
		return Errorf(EINVALID, "source name required")
	}
	if !sourceNameRe.MatchString(s.Name) {
		return Errorf(EINVALID, "source name %q may only contain letters, digits, '.', '-' and '_'", s.Name)
	}
	if s.URL == "" {
		return Errorf(EINVALID, "source %s: url required", s.Name)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Errorf(EINVALID, "source %s: url %q must be an absolute http(s) URL", s.Name, s.URL)
	}
	if s.Container == "" {
		return Errorf(EINVALID, "source %s: container selector required", s.Name)
	}
	if len(s.Fields) == 0 {
		return Errorf(EINVALID, "source %s: field selectors required", s.Name)
	}
	if s.MaxPages < 0 {
		return Errorf(EINVALID, "source %s: max pages must not be negative", s.Name)
	}
	if s.Normalize == nil {
		return Errorf(EINVALID, "source %s: normalize function required", s.Name)
	}
	return nil
}

// Paginates reports whether the source defines a next page selector.
func (s *Source) Paginates() bool {
	return s.NextPage != ""
}

// FetchRequest builds the request for the listing fetcher. Pagination
// fields are only set when paginate is true.
func (s *Source) FetchRequest(paginate bool) FetchRequest {
	req := FetchRequest{
		URL:       s.URL,
		Container: s.Container,
		Fields:    s.Fields,
	}
	if paginate {
		req.NextPage = s.NextPage
		req.MaxPages = s.MaxPages
	}
	return req
}

// Keep applies the source filter. Sources without a filter keep everything.
func (s *Source) Keep(l Listing) bool {
	if s.Filter == nil {
		return true
	}
	return s.Filter(l)
}

// Message formats the notification for l with the source formatter,
// falling back to FormatMessage.
func (s *Source) Message(l Listing) string {
	if s.Format == nil {
		return FormatMessage(l)
	}
	return s.Format(l)
}

// FetchRequest describes what the listing fetcher should scrape.
type FetchRequest struct {
	URL       string
	Container string
	Fields    map[string]string

	// NextPage enables pagination when non-empty.
	NextPage string
	MaxPages int
}

// Paginate reports whether the request asks for multi-page traversal.
func (r FetchRequest) Paginate() bool {
	return r.NextPage != ""
}

// ListingFetcher scrapes raw listing records from a listings page.
// Implementations own HTML parsing and pagination.
type ListingFetcher interface {
	// FetchListings returns one record per container match, in page order.
	// With pagination enabled, records of all reachable pages are
	// concatenated in traversal order.
	FetchListings(ctx context.Context, req FetchRequest) ([]RawListing, error)
}
