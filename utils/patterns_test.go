package utils

import "testing"

func TestShouldInclude(t *testing.T) {
	matcher := NewPatternMatcher(nil, nil)
	if !matcher.ShouldInclude("file.txt") {
		t.Fatal("expected include by default")
	}
	matcher = NewPatternMatcher([]string{"*.idx"}, nil)
	if matcher.ShouldInclude("cache/6.0/1/abc-123") {
		t.Fatal("should not include unmatched include pattern")
	}
	if !matcher.ShouldInclude("cache/6.0/1/abc-123.idx") {
		t.Fatal("should include matching include pattern")
	}
	if !matcher.ShouldInclude("cache/6.0/1/ABC-123.IDX") {
		t.Fatal("glob match should ignore case")
	}
	matcher = NewPatternMatcher([]string{"*.idx"}, []string{"lastAccessFile*"})
	if matcher.ShouldInclude("cache/lastaccessfile.idx") {
		t.Fatal("should exclude matching exclude pattern")
	}
	matcher = NewPatternMatcher([]string{`.*/muffin/.*\.idx$`}, nil)
	if !matcher.ShouldInclude("cache/muffin/a.idx") {
		t.Fatal("should match regex include pattern")
	}
	if matcher.ShouldInclude("cache/other/a.idx") {
		t.Fatal("regex should not match other directories")
	}
}

func TestPlainNameIsNotRegex(t *testing.T) {
	matcher := NewPatternMatcher([]string{"a.idx"}, nil)
	if matcher.ShouldInclude("xa_idx") {
		t.Fatal("plain name must not be matched as a regular expression")
	}
	if !matcher.ShouldInclude("dir/a.idx") {
		t.Fatal("expected exact base name match")
	}
}
