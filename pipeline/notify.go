package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fwojciec/flatfinder"
	"golang.org/x/sync/errgroup"
)

// logTitleLength bounds titles in log records.
const logTitleLength = 100

// notify sends one message per listing concurrently and waits for all
// sends to settle. Failures are logged and counted but never returned:
// notification is best effort and must not keep listings from being
// recorded as known.
func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, listings []flatfinder.Listing) {
	var failed atomic.Int64

	var g errgroup.Group
	for _, l := range listings {
		logger.Info("new listing",
			"id", l.ID,
			"title", flatfinder.Shorten(l.Title, logTitleLength),
			"link", l.Link,
		)

		g.Go(func() error {
			if err := p.send(ctx, l); err != nil {
				failed.Add(1)
				logger.Warn("notification failed", "id", l.ID, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		logger.Warn("some notifications failed",
			"failed", n,
			"total", len(listings),
		)
	}
}

// send formats and delivers the message for l. A panic in the formatter or
// the notifier counts as a failed send.
func (p *Pipeline) send(ctx context.Context, l flatfinder.Listing) (err error) {
	defer recoverPanic(&err, "notify")
	return p.notifier.Send(ctx, p.source.Message(l))
}
