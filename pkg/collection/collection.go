// Package collection holds the slice helpers the repositories use to reshape
// backend results on the client: fallback filtering and ordering, and totals.
//
//	inStock := collection.Filter(products, func(p models.Product) bool { return p.Stock > 0 })
//	total := collection.Sum(lines, func(l models.CartLine) float64 { return l.Product.Price * float64(l.Quantity) })
package collection

import "sort"

// Filter returns the elements of s for which keep is true. The result is
// never nil, so it encodes as an empty JSON array.
func Filter[T any](s []T, keep func(T) bool) []T {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Pluck extracts one field from every element.
func Pluck[T, R any](s []T, field func(T) R) []R {
	out := make([]R, len(s))
	for i, v := range s {
		out[i] = field(v)
	}
	return out
}

// SortStable sorts s in place by less, keeping the input order of elements
// that compare equal, and returns it.
func SortStable[T any](s []T, less func(a, b T) bool) []T {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
	return s
}

// Sum adds up the values extracted by fn. An empty slice sums to 0.
func Sum[T any](s []T, fn func(T) float64) float64 {
	var total float64
	for _, v := range s {
		total += fn(v)
	}
	return total
}
