package idx

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the source ends before a field does,
	// including a seek beyond the end of the data.
	ErrTruncated = errors.New("truncated input")
	// ErrUnsupportedVersion marks a cache version outside 602-605. Decode
	// never returns it; callers use it to report skipped records.
	ErrUnsupportedVersion = errors.New("unsupported cache version")
)

// DecodeError describes where decoding a record stopped.
type DecodeError struct {
	Path   string
	Field  string
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s: %s at offset %d: %v", e.Path, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
