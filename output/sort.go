package output

import (
	"cmp"
	"slices"
	"strings"

	"javaidx/config"
	"javaidx/scanner"
)

// SortEntries orders entries in place by key. Equal keys keep their input
// order. Unknown keys sort by URL.
func SortEntries(entries []*scanner.Entry, key string) {
	slices.SortStableFunc(entries, compareBy(strings.ToLower(key)))
}

func compareBy(key string) func(a, b *scanner.Entry) int {
	switch key {
	case config.SortLength:
		return func(a, b *scanner.Entry) int { return cmp.Compare(a.ContentLength, b.ContentLength) }
	case config.SortModified:
		return func(a, b *scanner.Entry) int { return a.LastModified.Compare(b.LastModified) }
	case config.SortExpiration:
		return func(a, b *scanner.Entry) int { return a.Expiration.Compare(b.Expiration) }
	case config.SortValidation:
		return func(a, b *scanner.Entry) int { return a.Validation.Compare(b.Validation) }
	default:
		return func(a, b *scanner.Entry) int { return strings.Compare(a.URL, b.URL) }
	}
}
