// Package idx decodes the cache index (.idx) files written by the Java
// browser plugin and Java Web Start next to every cached resource.
//
// # Record Format
//
// Every file starts with the same six bytes:
//
//	[Busy(1)][Incomplete(1)][CacheVersion(4)]
//
// All integers are big-endian, strings are prefixed with an unsigned 16-bit
// length, and timestamps are signed 64-bit milliseconds since the Unix epoch.
// The bytes that follow depend on CacheVersion:
//
//   - 602 stores the resource fields and the HTTP response headers inline.
//     A header named deploy_resource_codebase_ip carries the codebase IP.
//   - 603 and 604 add validation and signing fields. When Section2Length is
//     positive the resource strings and the headers live in a second section
//     that always begins at byte 128.
//   - 605 is 604 without the two reserved bytes and with a trailing proxied
//     flag.
//
// Other version codes decode to a record holding only the leading fields.
//
// # Usage
//
//	rec, err := idx.DecodeFile("/path/to/cache/6.0/12/3e0a1b4c-5d2f7a81.idx")
//	if err != nil {
//	    return err // rec.Error is set, rec.Path and rec.FileName are kept
//	}
//	fmt.Println(rec.URL, rec.HeadersText())
//
// Decoding is all-or-nothing: a record is either complete or marked as
// failed. Decode holds no state between calls and is safe for concurrent use
// on distinct sources.
package idx
