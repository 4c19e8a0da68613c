package utils

import (
	"path/filepath"
	"strings"
)

// IsPathWithin returns true if the given path is within any of the roots.
func IsPathWithin(path string, roots []string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	absPath, err := filepath.Abs(resolved)
	if err != nil {
		return false
	}
	for _, root := range roots {
		rResolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			rResolved = root
		}
		absRoot, err := filepath.Abs(rResolved)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// CompanionPath returns the path of the cached resource stored next to an
// index file: the same name without the .idx extension. ok is false when
// idxPath has no such extension.
func CompanionPath(idxPath string) (string, bool) {
	ext := filepath.Ext(idxPath)
	if !strings.EqualFold(ext, ".idx") {
		return "", false
	}
	trimmed := strings.TrimSuffix(idxPath, ext)
	if trimmed == "" || strings.HasSuffix(trimmed, string(filepath.Separator)) {
		return "", false
	}
	return trimmed, true
}
