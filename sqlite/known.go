package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/flatfinder"
)

// Compile-time interface verification.
var _ flatfinder.KnownListingService = (*KnownListingService)(nil)

// KnownListingService implements flatfinder.KnownListingService using SQLite.
type KnownListingService struct {
	db  *DB
	now func() time.Time
}

// NewKnownListingService creates a new KnownListingService.
func NewKnownListingService(db *DB) *KnownListingService {
	return &KnownListingService{db: db, now: time.Now}
}

// FindKnownIDs returns the known ids of source in the order they were recorded.
func (s *KnownListingService) FindKnownIDs(ctx context.Context, source string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT listing_id
		FROM known_listings
		WHERE source = ?
		ORDER BY seq
	`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordNew appends ids to the known set of source in a single transaction.
// Ids already known are ignored.
func (s *KnownListingService) RecordNew(ctx context.Context, source string, ids []string) error {
	if source == "" {
		return flatfinder.Errorf(flatfinder.EINVALID, "source required")
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO known_listings (source, listing_id, created_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	createdAt := s.now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if id == "" {
			return flatfinder.Errorf(flatfinder.EINVALID, "listing id required")
		}
		if _, err := stmt.ExecContext(ctx, source, id, createdAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindKnownListings retrieves recorded listings matching filter, oldest first.
func (s *KnownListingService) FindKnownListings(ctx context.Context, filter flatfinder.KnownListingFilter) ([]*flatfinder.KnownListing, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT source, listing_id, created_at FROM known_listings WHERE 1=1`)
	if filter.Source != nil {
		query.WriteString(" AND source = ?")
		args = append(args, *filter.Source)
	}
	query.WriteString(" ORDER BY seq")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*flatfinder.KnownListing
	for rows.Next() {
		var (
			kl        flatfinder.KnownListing
			createdAt string
		)
		if err := rows.Scan(&kl.Source, &kl.ID, &createdAt); err != nil {
			return nil, err
		}
		if kl.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		listings = append(listings, &kl)
	}
	return listings, rows.Err()
}

// FindSources returns the names of all sources with recorded listings,
// sorted by name.
func (s *KnownListingService) FindSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT source
		FROM known_listings
		ORDER BY source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}
