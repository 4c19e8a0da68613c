package prefilter

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/FastFilter/xorfilter"
	"github.com/cespare/xxhash/v2"
)

// Watchlist flags hosts and IP addresses of interest. Entries are matched
// exactly after lowercasing; a host also matches its subdomains.
type Watchlist struct {
	filter  *xorfilter.Xor8
	entries map[string]struct{}
}

// LoadWatchlist reads one entry per line. Blank lines and lines starting
// with # are skipped.
func LoadWatchlist(path string) (*Watchlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	defer f.Close()
	return ReadWatchlist(f)
}

func ReadWatchlist(r io.Reader) (*Watchlist, error) {
	var entries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	return NewWatchlist(entries)
}

func NewWatchlist(entries []string) (*Watchlist, error) {
	w := &Watchlist{entries: make(map[string]struct{}, len(entries))}
	keys := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		entry = normalizeHost(entry)
		if entry == "" {
			continue
		}
		if _, ok := w.entries[entry]; ok {
			continue
		}
		w.entries[entry] = struct{}{}
		keys = append(keys, xxhash.Sum64String(entry))
	}
	if len(keys) == 0 {
		return w, nil
	}
	filter, err := xorfilter.Populate(keys)
	if err != nil {
		return nil, fmt.Errorf("build watchlist filter: %w", err)
	}
	w.filter = filter
	return w, nil
}

func (w *Watchlist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

// Contains reports whether value, or a parent domain of it, is listed.
func (w *Watchlist) Contains(value string) bool {
	if w.Len() == 0 {
		return false
	}
	host := normalizeHost(value)
	for host != "" {
		if w.filter.Contains(xxhash.Sum64String(host)) {
			if _, ok := w.entries[host]; ok {
				return true
			}
		}
		if net.ParseIP(host) != nil {
			return false
		}
		_, parent, found := strings.Cut(host, ".")
		if !found {
			return false
		}
		host = parent
	}
	return false
}

// Match returns the listed values among candidates, in order and without
// repeats. Candidates may be URLs, hosts or IP addresses.
func (w *Watchlist) Match(candidates ...string) []string {
	if w.Len() == 0 {
		return nil
	}
	var hits []string
	for _, c := range candidates {
		host := HostOf(c)
		if host == "" || !w.Contains(host) {
			continue
		}
		dup := false
		for _, h := range hits {
			if h == host {
				dup = true
				break
			}
		}
		if !dup {
			hits = append(hits, host)
		}
	}
	return hits
}

// HostOf extracts the host from a URL, or returns the trimmed value when it
// is not a URL.
func HostOf(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.Contains(value, "://") {
		u, err := url.Parse(value)
		if err != nil {
			return ""
		}
		return normalizeHost(u.Hostname())
	}
	return normalizeHost(value)
}

func normalizeHost(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimSuffix(value, ".")
	return strings.Trim(value, "[]")
}
