package http

import (
	"context"
	"strings"
	"sync"

	"github.com/fwojciec/flatfinder"
	"golang.org/x/time/rate"
)

var _ flatfinder.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces out page requests to each listing portal with a
// token bucket per portal. Hosts differing only in case, a "www." prefix
// or a port share one bucket, so a portal that redirects between them is
// still paced as one site.
type DomainLimiter struct {
	limit rate.Limit

	mu      sync.Mutex
	portals map[string]*rate.Limiter
}

// NewDomainLimiter returns a limiter allowing rps requests per second to
// each portal, without bursts. A non-positive rps disables limiting.
func NewDomainLimiter(rps float64) *DomainLimiter {
	return &DomainLimiter{
		limit:   rate.Limit(rps),
		portals: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to domain is allowed or ctx is done.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	if d.limit <= 0 {
		return ctx.Err()
	}
	return d.portal(domain).Wait(ctx)
}

func (d *DomainLimiter) portal(domain string) *rate.Limiter {
	key := portalKey(domain)

	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.portals[key]
	if !ok {
		l = rate.NewLimiter(d.limit, 1)
		d.portals[key] = l
	}
	return l
}

// portalKey reduces a host to the name its bucket is stored under.
func portalKey(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.Count(host, ":") == 1 {
		host = host[:strings.IndexByte(host, ':')]
	}
	return strings.TrimPrefix(host, "www.")
}
