package mock

import (
	"context"

	"github.com/fwojciec/flatfinder"
)

var _ flatfinder.KnownListingService = (*KnownListingService)(nil)

// KnownListingService is a mock implementation of flatfinder.KnownListingService.
type KnownListingService struct {
	FindKnownIDsFn func(ctx context.Context, source string) ([]string, error)
	RecordNewFn    func(ctx context.Context, source string, ids []string) error
}

func (s *KnownListingService) FindKnownIDs(ctx context.Context, source string) ([]string, error) {
	return s.FindKnownIDsFn(ctx, source)
}

func (s *KnownListingService) RecordNew(ctx context.Context, source string, ids []string) error {
	return s.RecordNewFn(ctx, source, ids)
}
