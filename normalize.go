package flatfinder

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Standard field names read by FieldNormalizer.
const (
	FieldID      = "id"
	FieldTitle   = "title"
	FieldPrice   = "price"
	FieldSize    = "size"
	FieldAddress = "address"
	FieldLink    = "link"
)

// HashID derives a stable listing id from s, typically the listing link.
// Used for sources that do not expose an id of their own.
func HashID(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// TitleBlacklist returns a filter that rejects listings whose title
// contains any of words as a whole word, ignoring case.
// An empty word list keeps every listing.
func TitleBlacklist(words []string) (FilterFunc, error) {
	var quoted []string
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) == 0 {
		return func(Listing) bool { return true }, nil
	}

	re, err := regexp.Compile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, Errorf(EINVALID, "invalid blacklist: %v", err)
	}
	return func(l Listing) bool {
		return !re.MatchString(l.Title)
	}, nil
}

// FieldNormalizer maps raw records with the standard field names to
// listings. The zero value reads the id from FieldID and leaves links as
// scraped.
type FieldNormalizer struct {
	// IDField names the raw field holding the listing id. Defaults to FieldID.
	IDField string

	// BaseURL resolves relative links.
	BaseURL string

	// TitleStrip lists literal substrings removed from titles.
	TitleStrip []string

	// AddressStrip is removed from addresses, e.g. a trailing district.
	AddressStrip *regexp.Regexp
}

// Normalize implements NormalizeFunc.
func (n *FieldNormalizer) Normalize(raw RawListing) (Listing, error) {
	l := Listing{
		Title:   raw.String(FieldTitle),
		Price:   collapseSpace(raw.String(FieldPrice)),
		Size:    collapseSpace(raw.String(FieldSize)),
		Address: raw.String(FieldAddress),
		Link:    strings.TrimSpace(raw.String(FieldLink)),
	}

	for _, s := range n.TitleStrip {
		l.Title = strings.ReplaceAll(l.Title, s, "")
	}
	l.Title = collapseSpace(l.Title)

	if n.AddressStrip != nil {
		l.Address = n.AddressStrip.ReplaceAllString(l.Address, "")
	}
	l.Address = collapseSpace(l.Address)

	if l.Link != "" && n.BaseURL != "" {
		link, err := resolveLink(n.BaseURL, l.Link)
		if err != nil {
			return Listing{}, err
		}
		l.Link = link
	}

	idField := n.IDField
	if idField == "" {
		idField = FieldID
	}
	l.ID = strings.TrimSpace(raw.String(idField))
	if l.ID == "" {
		if l.Link == "" {
			return Listing{}, fmt.Errorf("record has neither %q nor %q", idField, FieldLink)
		}
		l.ID = HashID(l.Link)
	}

	return l, nil
}

func resolveLink(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}
