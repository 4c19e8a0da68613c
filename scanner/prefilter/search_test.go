package prefilter

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestSearchCounterIgnoresCase(t *testing.T) {
	terms := []string{"alpha", "Beta", "ALPHA", ""}
	content := "alpha Beta alpha alphabet beta"

	counts := BuildSearchCounter(terms).Count(content)
	expected := map[string]int{"alpha": 3, "Beta": 2}
	if !reflect.DeepEqual(expected, counts) {
		t.Fatalf("search counter mismatch: expected=%v got=%v", expected, counts)
	}
}

func TestSearchCounterAutoUsesAhoForLargeInputs(t *testing.T) {
	terms := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota"}
	content := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta iota ", 256)

	counter := BuildSearchCounter(terms)
	if _, ok := counter.(autoSearchCounter); !ok {
		t.Fatalf("expected auto counter, got %T", counter)
	}
	counts := counter.Count(content)
	for _, term := range terms {
		expected := bytes.Count([]byte(content), []byte(term))
		if counts[term] != expected {
			t.Fatalf("term %q mismatch: expected=%d got=%d", term, expected, counts[term])
		}
	}
}

func TestSearchCounterNoTerms(t *testing.T) {
	if hits := BuildSearchCounter(nil).Count("anything"); len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestAhoAndNaiveAgree(t *testing.T) {
	terms := []string{"jar", "Content-Type", "x-java", "evil.example", "200", "ok", "gzip", "http", "cache"}
	content := []byte(strings.Repeat("HTTP/1.1 200 OK, content-type: application/x-java-archive, http://evil.example/a.jar ", 80))
	built := BuildSearchCounter(terms).(autoSearchCounter)
	naive := built.naive.CountBytes(content)
	aho := built.aho.CountBytes(content)
	if !reflect.DeepEqual(naive, aho) {
		t.Fatalf("counter mismatch: naive=%v aho=%v", naive, aho)
	}
	if naive["Content-Type"] != 80 {
		t.Fatalf("unexpected count: %v", naive)
	}
}
