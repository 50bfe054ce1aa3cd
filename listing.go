package flatfinder

import (
	"strconv"
	"strings"
)

// Listing is one classified ad scraped from a source.
// ID is the only field used for deduplication.
type Listing struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Address string `json:"address"`
	Link    string `json:"link"`
}

// RawListing maps field names to scraped values. Values are strings unless
// a field selector converted them to int or float64.
type RawListing map[string]any

// Has reports whether the field was scraped.
func (r RawListing) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the field formatted as a string.
// Missing fields yield an empty string.
func (r RawListing) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// KnownSet is the in-memory view of the listing ids recorded for a source.
type KnownSet struct {
	ids   []string
	index map[string]struct{}
}

// NewKnownSet builds a KnownSet from ids in append order.
// Repeated ids keep their first position.
func NewKnownSet(ids []string) *KnownSet {
	s := &KnownSet{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add records id and reports whether it was new.
func (s *KnownSet) Add(id string) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is known.
func (s *KnownSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of known ids.
func (s *KnownSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the known ids in append order.
func (s *KnownSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Diff returns the listings whose id is not in the set, in input order.
// A listing repeated within the input is returned once.
func (s *KnownSet) Diff(listings []Listing) []Listing {
	seen := make(map[string]struct{}, len(listings))
	var out []Listing
	for _, l := range listings {
		if s.Contains(l.ID) {
			continue
		}
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

// ListingIDs returns the ids of listings in order.
func ListingIDs(listings []Listing) []string {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	return ids
}

// collapseSpace trims s and replaces every run of whitespace with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
