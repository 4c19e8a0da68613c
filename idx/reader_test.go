package idx

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, data []byte) *reader {
	t.Helper()
	r, err := newReader(bytes.NewReader(data))
	require.NoError(t, err)
	return r
}

func TestReaderInt32BigEndian(t *testing.T) {
	r := newTestReader(t, []byte{0x00, 0x00, 0x01, 0x2C, 0xFF, 0xFF, 0xFF, 0xFE})
	v, err := r.readInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(300), v)

	v, err = r.readInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-2), v)
	assert.Equal(t, int64(8), r.off)
}

func TestReaderTimestamp(t *testing.T) {
	ms := int64(1325376000123)
	data := []byte{
		byte(ms >> 56), byte(ms >> 48), byte(ms >> 40), byte(ms >> 32),
		byte(ms >> 24), byte(ms >> 16), byte(ms >> 8), byte(ms),
	}
	r := newTestReader(t, data)
	ts, err := r.readTimestamp()
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.UnixMilli(ms)), "got %v", ts)
	assert.Equal(t, time.Local, ts.Location())
}

func TestReaderZeroTimestampIsEpoch(t *testing.T) {
	r := newTestReader(t, make([]byte, 8))
	ts, err := r.readTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts.UnixMilli())
}

func TestReaderPrefixedString(t *testing.T) {
	r := newTestReader(t, []byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o', 0x00, 0x00})
	s, err := r.readPrefixedString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	s, err = r.readPrefixedString()
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.Equal(t, int64(9), r.off)
}

func TestReaderStringLatin1Fallback(t *testing.T) {
	r := newTestReader(t, []byte{0x00, 0x04, 'c', 'a', 'f', 0xE9})
	s, err := r.readPrefixedString()
	require.NoError(t, err)
	assert.Equal(t, "café", s)
}

func TestReaderStringKeepsUTF8(t *testing.T) {
	r := newTestReader(t, []byte{0x00, 0x05, 'c', 'a', 'f', 0xC3, 0xA9})
	s, err := r.readPrefixedString()
	require.NoError(t, err)
	assert.Equal(t, "café", s)
}

func TestReaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *reader) error
	}{
		{"bool", nil, func(r *reader) error { _, err := r.readBool(); return err }},
		{"int32", []byte{0, 0, 1}, func(r *reader) error { _, err := r.readInt32(); return err }},
		{"timestamp", []byte{0, 0, 0, 0}, func(r *reader) error { _, err := r.readTimestamp(); return err }},
		{"length", []byte{0}, func(r *reader) error { _, err := r.readPrefixedString(); return err }},
		{"string body", []byte{0, 10, 'a', 'b'}, func(r *reader) error { _, err := r.readPrefixedString(); return err }},
		{"skip", []byte{0}, func(r *reader) error { return r.skip(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(newTestReader(t, tt.data))
			assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
		})
	}
}

func TestReaderSeek(t *testing.T) {
	r := newTestReader(t, []byte{1, 2, 3, 4})
	require.NoError(t, r.seek(2))
	b, err := r.readByte()
	require.NoError(t, err)
	assert.Equal(t, byte(3), b)
	assert.Equal(t, int64(3), r.off)

	require.NoError(t, r.seek(4))
	_, err = r.readByte()
	assert.ErrorIs(t, err, ErrTruncated)

	assert.ErrorIs(t, r.seek(5), ErrTruncated)
}

func TestReadFieldsRecordsFailingField(t *testing.T) {
	r := newTestReader(t, []byte{1, 0, 0})
	var a bool
	var n int32
	err := r.readFields(boolField("busy", &a), int32Field("cache_version", &n))
	assert.ErrorIs(t, err, ErrTruncated)
	assert.True(t, a)
	assert.Equal(t, "cache_version", r.field)
	assert.Equal(t, int64(1), r.fieldOff)
}
