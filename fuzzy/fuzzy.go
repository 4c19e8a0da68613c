// Package fuzzy computes similarity digests of cached resources.
package fuzzy

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/glaslos/tlsh"
)

// Hasher defines a fuzzy hashing implementation.
type Hasher interface {
	Name() string
	HashReader(r io.Reader) (string, error)
}

var registry = map[string]Hasher{}

// Register adds a fuzzy hasher to the registry.
func Register(hasher Hasher) {
	if hasher == nil {
		return
	}
	registry[strings.ToLower(hasher.Name())] = hasher
}

// Lookup returns a registered hasher by name.
func Lookup(name string) (Hasher, bool) {
	hasher, ok := registry[strings.ToLower(name)]
	return hasher, ok
}

// HashFile runs h over the file at path.
func HashFile(h Hasher, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.HashReader(bufio.NewReader(f))
}

type TLSHHasher struct{}

func (TLSHHasher) Name() string {
	return "tlsh"
}

// HashReader fails for inputs shorter than TLSH's minimum length.
func (TLSHHasher) HashReader(r io.Reader) (string, error) {
	hash, err := tlsh.HashReader(bufio.NewReader(r))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func init() {
	Register(TLSHHasher{})
}
