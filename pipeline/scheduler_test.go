package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/mock"
	"github.com/fwojciec/flatfinder/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedSource(t *testing.T, name string) *flatfinder.Source {
	t.Helper()
	s := demoSource(t)
	s.Name = name
	return s
}

func TestRunAll(t *testing.T) {
	t.Parallel()

	t.Run("runs every source and isolates failures", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore("a")
		notifier := &recordingNotifier{}
		failing := &mock.ListingFetcher{
			FetchListingsFn: func(_ context.Context, _ flatfinder.FetchRequest) ([]flatfinder.RawListing, error) {
				return nil, errors.New("boom")
			},
		}

		pipelines := []*pipeline.Pipeline{
			newPipeline(t, namedSource(t, "a"), fetcherReturning(nil, "1", "2"), notifier.mock(), store.service()),
			newPipeline(t, namedSource(t, "b"), failing, notifier.mock(), store.service()),
			newPipeline(t, namedSource(t, "c"), fetcherReturning(nil, "9"), notifier.mock(), store.service()),
		}

		got := pipeline.RunAll(context.Background(), pipelines)

		assert.Equal(t, []string{"1", "2", "9"}, flatfinder.ListingIDs(got))
		assert.Equal(t, []string{"1", "2"}, store.known("a"))
		assert.Empty(t, store.known("b"))
		assert.Equal(t, []string{"9"}, store.known("c"))
	})

	t.Run("returns nil without pipelines", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, pipeline.RunAll(context.Background(), nil))
	})
}

func TestScheduler_Watch(t *testing.T) {
	t.Parallel()

	t.Run("reuses pipelines across ticks until canceled", func(t *testing.T) {
		t.Parallel()

		var (
			mu       sync.Mutex
			requests []flatfinder.FetchRequest
			runs     = map[string]int{}
		)
		store := newMemoryStore("a")
		p := newPipeline(t, namedSource(t, "a"), fetcherReturning(&requests, "1"), (&recordingNotifier{}).mock(), store.service())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := &pipeline.Scheduler{
			Interval: 10 * time.Millisecond,
			OnRun: func(source string, _ []flatfinder.Listing) {
				mu.Lock()
				defer mu.Unlock()
				runs[source]++
				if runs[source] == 3 {
					cancel()
				}
			},
		}

		err := s.Watch(ctx, []*pipeline.Pipeline{p})

		require.ErrorIs(t, err, context.Canceled)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, runs["a"])
		require.Len(t, requests, 3)
		assert.True(t, requests[0].Paginate(), "first tick crawls all pages")
		assert.False(t, requests[1].Paginate())
		assert.False(t, requests[2].Paginate())
		assert.Equal(t, []string{"1"}, store.known("a"))
	})

	t.Run("returns immediately when context is already done", func(t *testing.T) {
		t.Parallel()

		called := false
		p := newPipeline(t, namedSource(t, "a"), &mock.ListingFetcher{
			FetchListingsFn: func(_ context.Context, _ flatfinder.FetchRequest) ([]flatfinder.RawListing, error) {
				called = true
				return nil, nil
			},
		}, (&recordingNotifier{}).mock(), newMemoryStore("a").service())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := (&pipeline.Scheduler{}).Watch(ctx, []*pipeline.Pipeline{p})

		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
