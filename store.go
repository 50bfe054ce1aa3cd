package flatfinder

import (
	"context"
	"time"
)

// KnownListingService persists the ids of listings already reported,
// namespaced per source. The stored ids form a set that only grows;
// append order is preserved for inspection.
type KnownListingService interface {
	// FindKnownIDs returns the known ids for source in append order.
	// A source without recorded state yields an empty slice, not an error.
	FindKnownIDs(ctx context.Context, source string) ([]string, error)

	// RecordNew appends ids to the known set of source. Ids already present
	// are skipped, so repeated calls leave existing ids and their order intact.
	RecordNew(ctx context.Context, source string, ids []string) error
}

// KnownListing is a single recorded listing id.
type KnownListing struct {
	Source    string    `json:"source"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// KnownListingFilter selects recorded listings for inspection.
type KnownListingFilter struct {
	Source *string

	Offset int
	Limit  int
}
