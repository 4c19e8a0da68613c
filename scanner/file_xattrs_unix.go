//go:build !windows

package scanner

import (
	"bytes"
	"encoding/base64"
	"errors"

	"golang.org/x/sys/unix"
)

// getXattrs lists the extended attributes of path. Values are base64 encoded
// and cut to maxValueSize bytes; a zero maxValueSize records names only.
// Browsers and the plugin runtime tag downloaded cache files this way
// (com.apple.quarantine, user.xdg.origin.url).
func getXattrs(path string, maxValueSize int) (map[string]string, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) {
			return nil, errNotSupported
		}
		return nil, err
	}
	if size <= 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := unix.Llistxattr(path, buf)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for _, name := range bytes.Split(buf[:n], []byte{0}) {
		if len(name) == 0 {
			continue
		}
		value, err := readXattrValue(path, string(name), maxValueSize)
		if err != nil {
			value = ""
		}
		result[string(name)] = value
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func readXattrValue(path, name string, maxValueSize int) (string, error) {
	if maxValueSize == 0 {
		return "", nil
	}
	size, err := unix.Lgetxattr(path, name, nil)
	if err != nil || size <= 0 {
		return "", err
	}
	if maxValueSize > 0 && size > maxValueSize {
		size = maxValueSize
	}
	buf := make([]byte, size)
	n, err := unix.Lgetxattr(path, name, buf)
	if err != nil {
		if errors.Is(err, unix.ERANGE) {
			// value is larger than the cap; read it whole and cut
			return readXattrTruncated(path, name, maxValueSize)
		}
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf[:n]), nil
}

func readXattrTruncated(path, name string, maxValueSize int) (string, error) {
	size, err := unix.Lgetxattr(path, name, nil)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	n, err := unix.Lgetxattr(path, name, buf)
	if err != nil {
		return "", err
	}
	if n > maxValueSize {
		n = maxValueSize
	}
	return base64.StdEncoding.EncodeToString(buf[:n]), nil
}
