// Package bloom tracks visited pages during paginated traversal.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter is a probabilistic set of page URLs. A false positive ends a
// traversal early; a false negative cannot occur.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a filter sized for n pages with the given false
// positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	return &Filter{f: bloom.NewWithEstimates(n, fpRate)}
}

// Visit records url and reports whether it had been visited before.
func (f *Filter) Visit(url string) bool {
	return f.f.TestAndAddString(url)
}

// Visited reports whether url may have been recorded.
func (f *Filter) Visited(url string) bool {
	return f.f.TestString(url)
}
