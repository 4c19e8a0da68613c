package idx

import (
	"io"
	"path/filepath"
)

// Decode reads one record from src. path is only used to fill Path and
// FileName. On failure the returned record keeps Path and FileName, has Error
// set and nothing else populated.
func Decode(src io.ReadSeeker, path string) (*Record, error) {
	rec, err := decode(src, path)
	if err != nil {
		return failed(path), err
	}
	return rec, nil
}

// DecodeFile opens path, decodes it and releases the source before returning.
func DecodeFile(path string, opts ...Option) (*Record, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	src, err := openSource(path, o)
	if err != nil {
		return failed(path), &DecodeError{Path: path, Err: err}
	}
	defer src.Close()
	return Decode(src, path)
}

func decode(src io.ReadSeeker, path string) (*Record, error) {
	r, err := newReader(src)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	rec := &Record{Path: path, FileName: filepath.Base(path)}

	err = r.readFields(
		boolField("busy", &rec.Busy),
		boolField("incomplete", &rec.Incomplete),
		int32Field("cache_version", &rec.CacheVersion),
	)
	if err == nil {
		if l, ok := layoutFor(rec.CacheVersion); ok {
			err = l.decode(r, rec)
		}
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Field: r.field, Offset: r.fieldOff, Err: err}
	}
	return rec, nil
}

func failed(path string) *Record {
	return &Record{Path: path, FileName: filepath.Base(path), Error: true}
}
