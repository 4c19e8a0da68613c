// Package idxtest builds cache index images for tests.
package idxtest

import (
	"bytes"
	"encoding/binary"
	"time"

	"javaidx/idx"
)

// Builder appends big-endian fields in the order they are written.
type Builder struct {
	buf bytes.Buffer
}

func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.Byte(1)
	}
	return b.Byte(0)
}

func (b *Builder) Byte(v byte) *Builder {
	b.buf.WriteByte(v)
	return b
}

func (b *Builder) Int32(v int32) *Builder {
	_ = binary.Write(&b.buf, binary.BigEndian, v)
	return b
}

func (b *Builder) Uint16(v uint16) *Builder {
	_ = binary.Write(&b.buf, binary.BigEndian, v)
	return b
}

func (b *Builder) Time(t time.Time) *Builder {
	_ = binary.Write(&b.buf, binary.BigEndian, t.UnixMilli())
	return b
}

// String writes a u16 length prefix and the raw bytes of s.
func (b *Builder) String(s string) *Builder {
	b.Uint16(uint16(len(s)))
	b.buf.WriteString(s)
	return b
}

// Raw appends p unchanged.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// PadTo zero-fills up to offset. It does nothing if the buffer is longer.
func (b *Builder) PadTo(offset int) *Builder {
	for b.buf.Len() < offset {
		b.buf.WriteByte(0)
	}
	return b
}

func (b *Builder) Len() int {
	return b.buf.Len()
}

func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// Entry describes a whole index file. Headers are written verbatim, so a 602
// codebase IP has to be passed as a deploy_resource_codebase_ip header.
type Entry struct {
	Busy          bool
	Incomplete    bool
	CacheVersion  int32
	ShortcutImage bool
	ContentLength int32
	LastModified  time.Time
	Expiration    time.Time
	Validation    time.Time
	Version       string
	URL           string
	NamespaceID   string
	CodebaseIP    string
	Signing       idx.Signing
	Headers       []idx.Header
}

// Build encodes e using the layout of e.CacheVersion. Unknown versions only
// get the leading fields.
func Build(e Entry) []byte {
	b := &Builder{}
	b.Bool(e.Busy).Bool(e.Incomplete).Int32(e.CacheVersion)
	switch e.CacheVersion {
	case idx.Version602:
		b.Byte(0).Byte(0)
		b.Bool(e.ShortcutImage).Int32(e.ContentLength).Time(e.LastModified).Time(e.Expiration)
		b.String(e.Version).String(e.URL).String(e.NamespaceID)
		writeHeaders(b, e.Headers)
	case idx.Version603, idx.Version604, idx.Version605:
		if e.CacheVersion != idx.Version605 {
			b.Byte(0).Byte(0)
		}
		writeSection1(b, e)
		if e.CacheVersion == idx.Version605 {
			b.Bool(e.Signing.IsProxied)
		}
		if e.Signing.Section2Length > 0 {
			b.PadTo(idx.SecondarySectionOffset)
			b.String(e.Version).String(e.URL).String(e.NamespaceID).String(e.CodebaseIP)
			writeHeaders(b, e.Headers)
		}
	}
	return b.Bytes()
}

func writeSection1(b *Builder, e Entry) {
	s := e.Signing
	b.Bool(e.ShortcutImage).Int32(e.ContentLength)
	b.Time(e.LastModified).Time(e.Expiration).Time(e.Validation)
	b.Bool(s.KnownToBeSigned)
	b.Int32(s.Section2Length).Int32(s.Section3Length).Int32(s.Section4Length).Int32(s.Section5Length)
	b.Time(s.BlacklistValidation).Time(s.CertExpiration)
	b.Bool(s.ClassVerification)
	b.Int32(s.ReducedManifestLength).Int32(s.Pre15Length)
	b.Bool(s.HasOnlySignedEntries).Bool(s.HasSingleCodeSource)
	b.Int32(s.CertsLength).Int32(s.SignersLength)
	b.Bool(s.HasMissingSignedEntries)
	b.Time(s.TrustedLibrariesValidation)
	b.Int32(s.ReducedManifest2Length)
}

func writeHeaders(b *Builder, headers []idx.Header) {
	b.Int32(int32(len(headers)))
	for _, h := range headers {
		b.String(h.Name).String(h.Value)
	}
}
