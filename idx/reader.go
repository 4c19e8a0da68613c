package idx

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// reader consumes big-endian primitives from a seekable source and tracks the
// absolute offset for error reporting.
type reader struct {
	src  io.ReadSeeker
	off  int64
	size int64
	buf  [8]byte

	// field and fieldOff name the value being read when an error occurs.
	field    string
	fieldOff int64
}

func newReader(src io.ReadSeeker) (*reader, error) {
	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &reader{src: src, size: size}, nil
}

func (r *reader) fill(n int) ([]byte, error) {
	b := r.buf[:n]
	read, err := io.ReadFull(r.src, b)
	r.off += int64(read)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return b, nil
}

func (r *reader) readBool() (bool, error) {
	b, err := r.fill(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readInt32() (int32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// readTimestamp reads Java epoch milliseconds as local time.
func (r *reader) readTimestamp() (time.Time, error) {
	b, err := r.fill(8)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(b))), nil
}

func (r *reader) readString(length int) (string, error) {
	if length == 0 {
		return "", nil
	}
	if r.size-r.off < int64(length) {
		return "", ErrTruncated
	}
	b := make([]byte, length)
	read, err := io.ReadFull(r.src, b)
	r.off += int64(read)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", ErrTruncated
		}
		return "", err
	}
	return decodeText(b), nil
}

// readPrefixedString reads a u16 length followed by that many bytes.
func (r *reader) readPrefixedString() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	return r.readString(int(n))
}

func (r *reader) skip(n int) error {
	for range n {
		if _, err := r.readByte(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) seek(offset int64) error {
	if offset > r.size {
		return ErrTruncated
	}
	pos, err := r.src.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	r.off = pos
	return nil
}

// decodeText keeps valid UTF-8 as is and maps anything else through
// ISO-8859-1, which accepts every byte.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
