package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/flatfinder"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the time between runs of a source under Scheduler.
const DefaultInterval = 10 * time.Minute

// RunAll runs every pipeline once. Pipelines run concurrently, so they must
// belong to different sources. A failing source does not affect the others.
// The new listings of all sources are returned in pipeline order.
func RunAll(ctx context.Context, pipelines []*Pipeline) []flatfinder.Listing {
	results := make([][]flatfinder.Listing, len(pipelines))

	var g errgroup.Group
	for i, p := range pipelines {
		g.Go(func() error {
			results[i] = p.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var all []flatfinder.Listing
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// Scheduler runs pipelines repeatedly. Each pipeline gets its own loop, so
// runs of one source never overlap while different sources proceed
// independently.
type Scheduler struct {
	// Interval between the starts of consecutive runs. Defaults to DefaultInterval.
	Interval time.Duration

	Logger *slog.Logger

	// OnRun, if set, receives the result of every run.
	OnRun func(source string, listings []flatfinder.Listing)
}

// Watch runs each pipeline immediately and then once per interval until
// ctx is done. It returns ctx.Err().
func (s *Scheduler) Watch(ctx context.Context, pipelines []*Pipeline) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, logger, p, interval)
		}()
	}

	logger.Info("watching sources", "count", len(pipelines), "interval", interval)
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, logger *slog.Logger, p *Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		listings := p.Run(ctx)
		if s.OnRun != nil {
			s.OnRun(p.Source().Name, listings)
		}

		select {
		case <-ctx.Done():
			logger.Debug("stopped watching", "source", p.Source().Name)
			return
		case <-ticker.C:
		}
	}
}
