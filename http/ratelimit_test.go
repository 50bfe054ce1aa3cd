package http_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/goquery"
	ffhttp "github.com/fwojciec/flatfinder/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainLimiter(t *testing.T) {
	t.Parallel()

	t.Run("implements flatfinder.DomainLimiter interface", func(t *testing.T) {
		t.Parallel()
		var _ flatfinder.DomainLimiter = ffhttp.NewDomainLimiter(1)
	})

	t.Run("allows immediate request when under limit", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(10)

		start := time.Now()
		err := limiter.Wait(context.Background(), "example.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Less(t, elapsed, 50*time.Millisecond, "first request should be immediate")
	})

	t.Run("rate limits requests to same domain", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(10) // 100ms between requests

		err := limiter.Wait(context.Background(), "example.com")
		require.NoError(t, err)

		start := time.Now()
		err = limiter.Wait(context.Background(), "example.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond, "should wait for rate limit")
	})

	t.Run("different domains have independent limits", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(10)

		err := limiter.Wait(context.Background(), "example.com")
		require.NoError(t, err)

		start := time.Now()
		err = limiter.Wait(context.Background(), "other.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Less(t, elapsed, 50*time.Millisecond, "different domain should not wait")
	})

	t.Run("www and port variants share one portal", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(10)

		require.NoError(t, limiter.Wait(context.Background(), "www.immobilienscout24.de"))

		for _, host := range []string{"immobilienscout24.de", "IMMOBILIENSCOUT24.DE:443"} {
			start := time.Now()
			require.NoError(t, limiter.Wait(context.Background(), host))
			assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "%s should share the bucket", host)
		}
	})

	t.Run("does not limit when rps is zero", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(0)

		start := time.Now()
		for range 5 {
			require.NoError(t, limiter.Wait(context.Background(), "example.com"))
		}
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(1)

		err := limiter.Wait(context.Background(), "example.com")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err = limiter.Wait(ctx, "example.com")
		assert.Error(t, err, "should fail when context times out")
	})

	t.Run("concurrent requests are serialized per domain", func(t *testing.T) {
		t.Parallel()

		limiter := ffhttp.NewDomainLimiter(100)

		var wg sync.WaitGroup
		var completed atomic.Int32

		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background(), "example.com"); err == nil {
					completed.Add(1)
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, int32(5), completed.Load(), "all requests should complete")
	})
}

func TestDomainLimiter_PacesPagination(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()

		page := r.URL.Query().Get("page")
		next := ""
		if page != "3" {
			next = `<a class="next" href="?page=3">next</a>`
			if page == "" {
				next = `<a class="next" href="?page=2">next</a>`
			}
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><ul><li class="listing"><a href="/expose/%s">Flat</a></li></ul>%s</body></html>`, page, next)
	}))
	defer srv.Close()

	fetcher := ffhttp.NewFetcher(ffhttp.WithLimiter(ffhttp.NewDomainLimiter(20))) // 50ms apart
	listings := goquery.NewListingFetcher(fetcher, goquery.WithRetryDelays())

	records, err := listings.FetchListings(context.Background(), flatfinder.FetchRequest{
		URL:       srv.URL + "/search",
		Container: "li.listing",
		Fields:    map[string]string{"link": "a@href"},
		NextPage:  "a.next@href",
	})

	require.NoError(t, err)
	assert.Len(t, records, 3)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 40*time.Millisecond, "page %d requested too early", i+1)
	}
}
