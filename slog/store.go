package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/flatfinder"
)

// Ensure LoggingKnownListingService implements flatfinder.KnownListingService.
var _ flatfinder.KnownListingService = (*LoggingKnownListingService)(nil)

// LoggingKnownListingService wraps a KnownListingService with debug logging.
type LoggingKnownListingService struct {
	next   flatfinder.KnownListingService
	logger *slog.Logger
}

// NewLoggingKnownListingService creates a new LoggingKnownListingService.
func NewLoggingKnownListingService(next flatfinder.KnownListingService, logger *slog.Logger) *LoggingKnownListingService {
	return &LoggingKnownListingService{next: next, logger: logger}
}

func (s *LoggingKnownListingService) FindKnownIDs(ctx context.Context, source string) (ids []string, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("find known ids",
			"source", source,
			"count", len(ids),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindKnownIDs(ctx, source)
}

func (s *LoggingKnownListingService) RecordNew(ctx context.Context, source string, ids []string) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("record new ids",
			"source", source,
			"count", len(ids),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.RecordNew(ctx, source, ids)
}
