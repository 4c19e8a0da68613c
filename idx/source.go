package idx

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// ReadMode selects how DecodeFile reads the index file.
type ReadMode string

const (
	// ReadAuto maps files of at least MmapMinSize bytes and streams the rest.
	ReadAuto   ReadMode = "auto"
	ReadStream ReadMode = "stream"
	ReadMmap   ReadMode = "mmap"
)

// DefaultMmapMinSize is the auto mode threshold. Index files are usually a
// few hundred bytes, so only unusually large ones are mapped.
const DefaultMmapMinSize int64 = 64 * 1024

type options struct {
	mode        ReadMode
	mmapMinSize int64
}

// Option configures DecodeFile.
type Option func(*options)

func defaultOptions() options {
	return options{mode: ReadAuto, mmapMinSize: DefaultMmapMinSize}
}

// WithReadMode sets the read mode. Unknown modes fall back to streaming.
func WithReadMode(mode ReadMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithMmapMinSize sets the auto mode threshold.
func WithMmapMinSize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.mmapMinSize = size
		}
	}
}

type source interface {
	io.ReadSeeker
	io.Closer
}

var openMmapReader = mmap.Open

func openSource(path string, o options) (source, error) {
	switch o.mode {
	case ReadMmap:
		return openMapped(path)
	case ReadAuto:
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() >= o.mmapMinSize {
			if src, err := openMapped(path); err == nil {
				return src, nil
			}
		}
		return openStream(path)
	default:
		return openStream(path)
	}
}

type mappedSource struct {
	*io.SectionReader
	r *mmap.ReaderAt
}

func (m *mappedSource) Close() error {
	return m.r.Close()
}

func openMapped(path string) (source, error) {
	r, err := openMmapReader(path)
	if err != nil {
		return nil, err
	}
	return &mappedSource{SectionReader: io.NewSectionReader(r, 0, int64(r.Len())), r: r}, nil
}

// streamSource buffers reads from the file. Seeking discards the buffer.
type streamSource struct {
	f   *os.File
	buf *bufio.Reader
	pos int64
}

func openStream(path string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &streamSource{f: f, buf: bufio.NewReaderSize(f, 4096)}, nil
}

func (s *streamSource) Read(p []byte) (int, error) {
	n, err := s.buf.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *streamSource) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		offset += s.pos
		whence = io.SeekStart
	}
	pos, err := s.f.Seek(offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.buf.Reset(s.f)
	s.pos = pos
	return pos, nil
}

func (s *streamSource) Close() error {
	return s.f.Close()
}
