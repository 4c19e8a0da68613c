// Package hasher computes evidence digests of cache files in one read pass.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"lukechampine.com/blake3"
)

const hashBufferSize = 32 * 1024

var hashBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, hashBufferSize)
		return &buf
	},
}

var constructors = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"blake3": func() hash.Hash { return blake3.New(32, nil) },
	"xxh64":  func() hash.Hash { return xxhash.New() },
}

// Supported reports whether name is a known algorithm.
func Supported(name string) bool {
	_, ok := constructors[name]
	return ok
}

// ComputeHashes returns the hex digest of path for every known algorithm.
// Unknown names and duplicates are ignored.
func ComputeHashes(path string, algorithms []string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()
	return HashReader(file, algorithms)
}

// HashReader is ComputeHashes over an arbitrary reader.
func HashReader(r io.Reader, algorithms []string) (map[string]string, error) {
	names := make([]string, 0, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	hashers := make([]hash.Hash, 0, len(algorithms))
	seen := make(map[string]struct{}, len(algorithms))
	for _, algo := range algorithms {
		newHash, ok := constructors[algo]
		if !ok {
			continue
		}
		if _, dup := seen[algo]; dup {
			continue
		}
		seen[algo] = struct{}{}
		h := newHash()
		names = append(names, algo)
		hashers = append(hashers, h)
		writers = append(writers, h)
	}
	hashes := make(map[string]string, len(hashers))
	if len(hashers) == 0 {
		return hashes, nil
	}

	bufferPtr := hashBufferPool.Get().(*[]byte)
	defer hashBufferPool.Put(bufferPtr)
	if _, err := io.CopyBuffer(io.MultiWriter(writers...), r, *bufferPtr); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	for i, h := range hashers {
		hashes[names[i]] = hex.EncodeToString(h.Sum(nil))
	}
	return hashes, nil
}
