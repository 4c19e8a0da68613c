package fuzzy

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func sample(n int) []byte {
	r := rand.New(rand.NewSource(7))
	buf := make([]byte, n)
	r.Read(buf)
	return buf
}

func TestLookupTLSH(t *testing.T) {
	h, ok := Lookup("TLSH")
	if !ok || h.Name() != "tlsh" {
		t.Fatalf("tlsh not registered: %v %v", h, ok)
	}
	if _, ok := Lookup("ssdeep"); ok {
		t.Fatal("unexpected hasher")
	}
	Register(nil)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content")
	data := sample(4096)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, _ := Lookup("tlsh")
	first, err := HashFile(h, path)
	if err != nil || first == "" {
		t.Fatalf("hash: %q %v", first, err)
	}
	second, err := h.HashReader(bytes.NewReader(data))
	if err != nil || second != first {
		t.Fatalf("digest not stable: %q vs %q (%v)", first, second, err)
	}
	// io.MultiReader has no ReadByte.
	third, err := h.HashReader(io.MultiReader(bytes.NewReader(data[:1024]), bytes.NewReader(data[1024:])))
	if err != nil || third != first {
		t.Fatalf("unbuffered reader digest: %q vs %q (%v)", first, third, err)
	}
}

func TestHashFileErrors(t *testing.T) {
	h, _ := Lookup("tlsh")
	if _, err := HashFile(h, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
