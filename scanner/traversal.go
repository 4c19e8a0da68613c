package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"javaidx/logger"
	"javaidx/utils"
)

// fastWalker walks a tree depth-first with an explicit stack. Children are
// pushed in reverse so files come out in lexical order.
type fastWalker struct{}

func (w fastWalker) Walk(ctx context.Context, startPath string, fn fs.WalkDirFunc) error {
	info, err := os.Stat(startPath)
	if err != nil {
		return fn(startPath, nil, err)
	}
	type item struct {
		path  string
		entry fs.DirEntry
	}
	stack := []item{{path: startPath, entry: fs.FileInfoToDirEntry(info)}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(current.path, current.entry, nil); err != nil {
			if errors.Is(err, fs.SkipDir) {
				continue
			}
			return err
		}
		if !current.entry.IsDir() {
			continue
		}

		entries, err := os.ReadDir(current.path)
		if err != nil {
			if ferr := fn(current.path, current.entry, err); ferr != nil && !errors.Is(ferr, fs.SkipDir) {
				return ferr
			}
			continue
		}
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, item{
				path:  filepath.Join(current.path, entries[i].Name()),
				entry: entries[i],
			})
		}
	}
	return nil
}

// walkIndexFiles calls fn for every non-directory under root accepted by
// matcher. info is nil when the entry could not be stat'ed.
func walkIndexFiles(ctx context.Context, root string, matcher *utils.PatternMatcher, fn func(path string, info os.FileInfo) error) error {
	return fastWalker{}.Walk(ctx, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warnf("Failed to access %s: %v", path, err)
			return nil
		}
		if d == nil || d.IsDir() {
			return nil
		}
		if !matcher.ShouldInclude(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			info = nil
		}
		return fn(path, info)
	})
}

func countIndexFiles(ctx context.Context, root string, matcher *utils.PatternMatcher) (int, error) {
	var total int
	err := walkIndexFiles(ctx, root, matcher, func(string, os.FileInfo) error {
		total++
		return nil
	})
	return total, err
}
