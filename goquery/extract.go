// Package goquery implements flatfinder.ListingFetcher by selecting listing
// fields from HTML with CSS selectors.
package goquery

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/flatfinder"
)

// Attribute names with special meaning in field selectors.
const (
	AttrText = "text"
	AttrHTML = "html"
)

// FieldSelector is a parsed field selector of the form
//
//	<css>[@attr] [| filter]...
//
// An empty CSS part selects the container element itself. The attribute
// defaults to the element text; "html" yields the inner HTML.
type FieldSelector struct {
	CSS     string
	Attr    string
	Filters []string
}

var knownFilters = map[string]bool{
	"trim":          true,
	"removeNewline": true,
	"collapse":      true,
	"int":           true,
	"float":         true,
}

// ParseFieldSelector parses s. Empty selectors and unknown filters are
// EINVALID errors.
func ParseFieldSelector(s string) (FieldSelector, error) {
	parts := strings.Split(s, "|")
	head := strings.TrimSpace(parts[0])

	var fs FieldSelector
	if i := strings.LastIndex(head, "@"); i >= 0 {
		fs.CSS = strings.TrimSpace(head[:i])
		fs.Attr = strings.TrimSpace(head[i+1:])
		if fs.Attr == "" {
			return FieldSelector{}, flatfinder.Errorf(flatfinder.EINVALID, "selector %q: empty attribute", s)
		}
	} else {
		fs.CSS = head
		fs.Attr = AttrText
	}
	if fs.CSS == "" && fs.Attr == AttrText && len(parts) == 1 {
		return FieldSelector{}, flatfinder.Errorf(flatfinder.EINVALID, "empty selector")
	}

	for _, f := range parts[1:] {
		f = strings.TrimSpace(f)
		if !knownFilters[f] {
			return FieldSelector{}, flatfinder.Errorf(flatfinder.EINVALID, "selector %q: unknown filter %q", s, f)
		}
		fs.Filters = append(fs.Filters, f)
	}
	return fs, nil
}

// ParseFieldSelectors parses every selector of fields.
func ParseFieldSelectors(fields map[string]string) (map[string]FieldSelector, error) {
	parsed := make(map[string]FieldSelector, len(fields))
	for name, s := range fields {
		fs, err := ParseFieldSelector(s)
		if err != nil {
			return nil, flatfinder.Errorf(flatfinder.EINVALID, "field %s: %s", name, flatfinder.ErrorMessage(err))
		}
		parsed[name] = fs
	}
	return parsed, nil
}

// value evaluates the selector within sel. The bool result is false when
// nothing matched.
func (fs FieldSelector) value(sel *goquery.Selection) (any, bool, error) {
	target := sel
	if fs.CSS != "" {
		target = sel.Find(fs.CSS).First()
	}
	if target.Length() == 0 {
		return nil, false, nil
	}

	var s string
	switch fs.Attr {
	case AttrText:
		s = target.Text()
	case AttrHTML:
		h, err := target.Html()
		if err != nil {
			return nil, false, err
		}
		s = h
	default:
		v, ok := target.Attr(fs.Attr)
		if !ok {
			return nil, false, nil
		}
		s = v
	}

	return applyFilters(s, fs.Filters)
}

func applyFilters(s string, filters []string) (any, bool, error) {
	var v any = s
	for _, f := range filters {
		str, isString := v.(string)
		if !isString {
			return nil, false, flatfinder.Errorf(flatfinder.EINVALID, "filter %q applied to a number", f)
		}
		switch f {
		case "trim":
			v = strings.TrimSpace(str)
		case "removeNewline":
			v = strings.NewReplacer("\r", "", "\n", "").Replace(str)
		case "collapse":
			v = strings.Join(strings.Fields(str), " ")
		case "int":
			n, err := strconv.Atoi(strings.TrimSpace(str))
			if err != nil {
				return nil, false, flatfinder.Errorf(flatfinder.EINVALID, "cannot convert %q to int", str)
			}
			v = n
		case "float":
			n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
			if err != nil {
				return nil, false, flatfinder.Errorf(flatfinder.EINVALID, "cannot convert %q to float", str)
			}
			v = n
		}
	}
	return v, true, nil
}

// ExtractListings parses html and returns one record per container match,
// in document order. Fields whose selector matches nothing are left out of
// the record.
func ExtractListings(html, container string, fields map[string]string) ([]flatfinder.RawListing, error) {
	parsed, err := ParseFieldSelectors(fields)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "failed to parse HTML: %v", err)
	}
	return extract(doc, container, parsed)
}

func extract(doc *goquery.Document, container string, fields map[string]FieldSelector) ([]flatfinder.RawListing, error) {
	var (
		records []flatfinder.RawListing
		extErr  error
	)
	doc.Find(container).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		record := make(flatfinder.RawListing, len(fields))
		for name, fs := range fields {
			v, ok, err := fs.value(sel)
			if err != nil {
				extErr = flatfinder.Errorf(flatfinder.EINVALID, "field %s: %s", name, flatfinder.ErrorMessage(err))
				return false
			}
			if ok {
				record[name] = v
			}
		}
		records = append(records, record)
		return true
	})
	if extErr != nil {
		return nil, extErr
	}
	return records, nil
}

// nextPageURL evaluates the next page selector against the whole document
// and resolves the link against pageURL. Returns "" when there is no link.
func nextPageURL(doc *goquery.Document, pageURL string, next FieldSelector) (string, error) {
	v, ok, err := next.value(doc.Selection)
	if err != nil || !ok {
		return "", err
	}
	href, _ := v.(string)
	href = strings.TrimSpace(href)
	if href == "" || isNonHTTPLink(href) {
		return "", nil
	}
	return resolveURL(pageURL, href)
}
