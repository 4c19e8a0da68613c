// Package prefilter holds the cheap matchers run against every decoded
// record: search term counting and the host watchlist.
package prefilter

import (
	"bytes"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// SearchCounter counts occurrences of search terms, ignoring ASCII case.
// Hits are keyed by the term as it was given.
type SearchCounter interface {
	Count(content string) map[string]int
	CountBytes(content []byte) map[string]int
}

const (
	autoAhoMinTerms        = 8
	autoAhoMinContentBytes = 4 * 1024
)

type naiveSearchCounter struct {
	terms     []string
	termsByte [][]byte
}

func (c naiveSearchCounter) Count(content string) map[string]int {
	return c.CountBytes([]byte(content))
}

func (c naiveSearchCounter) CountBytes(content []byte) map[string]int {
	return c.countFolded(foldASCII(content))
}

func (c naiveSearchCounter) countFolded(folded []byte) map[string]int {
	var hits map[string]int
	for i, term := range c.terms {
		count := bytes.Count(folded, c.termsByte[i])
		if count > 0 {
			if hits == nil {
				hits = make(map[string]int, 4)
			}
			hits[term] = count
		}
	}
	return hits
}

type ahoSearchCounter struct {
	naiveSearchCounter
	matcher *ahocorasick.Matcher
}

func (c ahoSearchCounter) Count(content string) map[string]int {
	return c.CountBytes([]byte(content))
}

// CountBytes uses the automaton to find which terms occur at all, then
// counts only those.
func (c ahoSearchCounter) CountBytes(content []byte) map[string]int {
	folded := foldASCII(content)
	matches := c.matcher.MatchThreadSafe(folded)
	if len(matches) == 0 {
		return nil
	}

	var hits map[string]int
	for _, idx := range matches {
		if idx < 0 || idx >= len(c.terms) {
			continue
		}
		count := bytes.Count(folded, c.termsByte[idx])
		if count > 0 {
			if hits == nil {
				hits = make(map[string]int, len(matches))
			}
			hits[c.terms[idx]] = count
		}
	}
	return hits
}

type autoSearchCounter struct {
	naive naiveSearchCounter
	aho   ahoSearchCounter
}

func (c autoSearchCounter) Count(content string) map[string]int {
	return c.CountBytes([]byte(content))
}

func (c autoSearchCounter) CountBytes(content []byte) map[string]int {
	if len(c.naive.terms) < autoAhoMinTerms || len(content) < autoAhoMinContentBytes {
		return c.naive.CountBytes(content)
	}
	return c.aho.CountBytes(content)
}

// BuildSearchCounter returns a counter for terms. Blank and repeated terms
// are dropped; with no terms left every count is empty.
func BuildSearchCounter(terms []string) SearchCounter {
	normalized := normalizeTerms(terms)
	termBytes := make([][]byte, len(normalized))
	folded := make([]string, len(normalized))
	for i := range normalized {
		termBytes[i] = foldASCII([]byte(normalized[i]))
		folded[i] = string(termBytes[i])
	}
	naive := naiveSearchCounter{terms: normalized, termsByte: termBytes}
	if len(normalized) == 0 {
		return naive
	}

	aho := ahoSearchCounter{naiveSearchCounter: naive, matcher: ahocorasick.NewStringMatcher(folded)}
	return autoSearchCounter{naive: naive, aho: aho}
}

func foldASCII(content []byte) []byte {
	out := make([]byte, len(content))
	for i, b := range content {
		out[i] = toASCIILower(b)
	}
	return out
}

func toASCIILower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := string(foldASCII([]byte(term)))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, term)
	}
	return normalized
}
