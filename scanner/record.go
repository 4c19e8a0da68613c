package scanner

import (
	"errors"

	"javaidx/idx"
)

// Entry is one decoded index file plus what was collected around it.
// The record fields are flattened into the JSON object.
type Entry struct {
	*idx.Record
	Evidence      *Evidence      `json:"evidence,omitempty"`
	Content       *Content       `json:"content,omitempty"`
	SearchHits    map[string]int `json:"search_hits,omitempty"`
	WatchlistHits []string       `json:"watchlist_hits,omitempty"`
}

// Evidence describes the .idx file itself on disk.
type Evidence struct {
	Size         int64             `json:"size"`
	ModTime      string            `json:"mod_time,omitempty"`
	CreationTime string            `json:"creation_time,omitempty"`
	AccessTime   string            `json:"access_time,omitempty"`
	ChangeTime   string            `json:"change_time,omitempty"`
	Permissions  string            `json:"permissions,omitempty"`
	FileID       string            `json:"file_id,omitempty"`
	Hashes       map[string]string `json:"hashes,omitempty"`
	Xattrs       map[string]string `json:"xattrs,omitempty"`
}

// Content describes the cached resource stored next to the index file.
type Content struct {
	Path        string                 `json:"path"`
	Size        int64                  `json:"size"`
	MimeType    string                 `json:"mime_type,omitempty"`
	Hashes      map[string]string      `json:"hashes,omitempty"`
	FuzzyHashes map[string]string      `json:"fuzzy_hashes,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HasSignalData reports whether a search term or watchlist entry matched.
func (e *Entry) HasSignalData() bool {
	if e == nil {
		return false
	}
	return len(e.SearchHits) > 0 || len(e.WatchlistHits) > 0
}

func (e *Entry) evidence() *Evidence {
	if e.Evidence == nil {
		e.Evidence = &Evidence{}
	}
	return e.Evidence
}

// Failure is an index file that could not be decoded.
type Failure struct {
	Path   string `json:"path"`
	Field  string `json:"field,omitempty"`
	Offset int64  `json:"offset,omitempty"`
	Reason string `json:"reason"`
}

func newFailure(path string, err error) Failure {
	f := Failure{Path: path, Reason: err.Error()}
	var de *idx.DecodeError
	if errors.As(err, &de) {
		f.Field = de.Field
		f.Offset = de.Offset
		if de.Err != nil {
			f.Reason = de.Err.Error()
		}
	}
	return f
}

// Stats counts what a directory scan saw.
type Stats struct {
	Found       int `json:"found"`
	Decoded     int `json:"decoded"`
	Failed      int `json:"failed"`
	Unsupported int `json:"unsupported"`
	Skipped     int `json:"skipped"`
}

// Result is the outcome of a directory scan. Entries are ordered by path.
type Result struct {
	Entries  []*Entry  `json:"records"`
	Failures []Failure `json:"failures"`
	Stats    Stats     `json:"stats"`
}
