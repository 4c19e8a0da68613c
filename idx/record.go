package idx

import (
	"fmt"
	"strings"
	"time"
)

// Cache versions written by the plugin runtime.
const (
	Version602 int32 = 602
	Version603 int32 = 603
	Version604 int32 = 604
	Version605 int32 = 605
)

// SecondarySectionOffset is the absolute start of section 2. It does not
// depend on how many bytes section 1 used.
const SecondarySectionOffset = 128

// Header is one captured HTTP response header. Name is empty for the status
// line, which the runtime stores under the name "<null>".
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Signing holds the section 1 fields describing the signed JAR sections.
// It is only present for cache versions 603, 604 and 605.
type Signing struct {
	KnownToBeSigned            bool      `json:"known_to_be_signed"`
	Section2Length             int32     `json:"section2_length"`
	Section3Length             int32     `json:"section3_length"`
	Section4Length             int32     `json:"section4_length"`
	Section5Length             int32     `json:"section5_length"`
	BlacklistValidation        time.Time `json:"blacklist_validation"`
	CertExpiration             time.Time `json:"cert_expiration"`
	ClassVerification          bool      `json:"class_verification"`
	ReducedManifestLength      int32     `json:"reduced_manifest_length"`
	Pre15Length                int32     `json:"pre15_length"`
	HasOnlySignedEntries       bool      `json:"has_only_signed_entries"`
	HasSingleCodeSource        bool      `json:"has_single_code_source"`
	CertsLength                int32     `json:"certs_length"`
	SignersLength              int32     `json:"signers_length"`
	HasMissingSignedEntries    bool      `json:"has_missing_signed_entries"`
	TrustedLibrariesValidation time.Time `json:"trusted_libraries_validation"`
	ReducedManifest2Length     int32     `json:"reduced_manifest2_length"`
	IsProxied                  bool      `json:"is_proxied"`
}

// Record is one decoded cache index file.
type Record struct {
	Path         string `json:"path"`
	FileName     string `json:"file_name"`
	Busy         bool   `json:"busy"`
	Incomplete   bool   `json:"incomplete"`
	Error        bool   `json:"error,omitempty"`
	CacheVersion int32  `json:"cache_version"`

	ShortcutImage bool      `json:"shortcut_image"`
	ContentLength int32     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
	Expiration    time.Time `json:"expiration"`
	Validation    time.Time `json:"validation"`
	Version       string    `json:"version,omitempty"`
	URL           string    `json:"url,omitempty"`
	NamespaceID   string    `json:"namespace_id,omitempty"`
	CodebaseIP    string    `json:"codebase_ip,omitempty"`

	Signing *Signing `json:"signing,omitempty"`
	Headers []Header `json:"headers"`
}

// Supported reports whether the cache version has a known layout.
func (r *Record) Supported() bool {
	_, ok := layoutFor(r.CacheVersion)
	return ok
}

// UnsupportedError returns an error wrapping ErrUnsupportedVersion for
// records with an unknown layout, nil otherwise.
func (r *Record) UnsupportedError() error {
	if r.Supported() {
		return nil
	}
	return fmt.Errorf("%w (%d) %s", ErrUnsupportedVersion, r.CacheVersion, r.Path)
}

// HeadersText flattens the headers into "name: value" pairs joined by ", ".
// Headers without a name contribute only their value.
func (r *Record) HeadersText() string {
	parts := make([]string, 0, len(r.Headers))
	for _, h := range r.Headers {
		if strings.TrimSpace(h.Name) == "" {
			parts = append(parts, h.Value)
			continue
		}
		parts = append(parts, h.Name+": "+h.Value)
	}
	return strings.Join(parts, ", ")
}

// Header returns the first value stored under name, ignoring case.
func (r *Record) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
