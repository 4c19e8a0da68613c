package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"javaidx/config"
	"javaidx/idx"
	"javaidx/logger"
	"javaidx/tracing"
	"javaidx/utils"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

type fileScanTask struct {
	path string
	info os.FileInfo
}

// pipeline decodes one index file and runs the enabled modules over it.
type pipeline struct {
	cfg      *config.Config
	roots    []string
	modules  []FileModule
	readOpts []idx.Option
}

func newPipeline(cfg *config.Config, roots []string) (*pipeline, error) {
	modules, err := buildFileModules(cfg)
	if err != nil {
		return nil, err
	}
	enabled := modules[:0]
	for _, m := range modules {
		if m.Enabled(cfg) {
			enabled = append(enabled, m)
		}
	}
	return &pipeline{
		cfg:     cfg,
		roots:   roots,
		modules: enabled,
		readOpts: []idx.Option{
			idx.WithReadMode(idx.ReadMode(cfg.ReadMode)),
			idx.WithMmapMinSize(cfg.MmapMinSize),
		},
	}, nil
}

// scanFile returns the entry together with the decode error, if any. The
// entry of a failed decode only carries Path, FileName and Error.
func (p *pipeline) scanFile(ctx context.Context, path string, info os.FileInfo) (*Entry, error) {
	ctx, endTask := tracing.StartTask(ctx, "scan_idx")
	tracing.Log(ctx, "file", path)
	defer endTask()

	endRegion := tracing.StartRegion(ctx, "decode")
	rec, err := idx.DecodeFile(path, p.readOpts...)
	endRegion()
	entry := &Entry{Record: rec}
	if err != nil {
		return entry, err
	}

	fc := &FileContext{Path: path, Info: info, Cfg: p.cfg, Record: rec}
	for _, module := range p.modules {
		if err := module.Collect(ctx, fc, entry); err != nil {
			if errors.Is(err, context.Canceled) {
				return entry, err
			}
			logger.Debugf("Module %s failed for %s: %v", module.Name(), path, err)
		}
	}
	return entry, nil
}

// ScanFile decodes a single index file. A missing file is reported with an
// error wrapping fs.ErrNotExist before any decoding is attempted.
func ScanFile(ctx context.Context, cfg *config.Config, path string) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	p, err := newPipeline(cfg, []string{filepath.Dir(path)})
	if err != nil {
		return nil, err
	}
	return p.scanFile(ctx, path, info)
}

// collector gathers worker output. Counters are atomic; slices are guarded
// by mu.
type collector struct {
	skipUnsupported bool

	mu       sync.Mutex
	entries  []*Entry
	failures []Failure

	found       atomic.Int64
	decoded     atomic.Int64
	failed      atomic.Int64
	unsupported atomic.Int64
	skipped     atomic.Int64
}

func (c *collector) add(entry *Entry, err error) {
	if err != nil {
		c.failed.Add(1)
		failure := newFailure(entry.Path, err)
		logger.WithFields(map[string]interface{}{
			"path":   failure.Path,
			"field":  failure.Field,
			"offset": failure.Offset,
		}).Warnf("Unable to parse IDX file: %s", failure.Reason)
		c.mu.Lock()
		c.failures = append(c.failures, failure)
		c.mu.Unlock()
		return
	}
	c.decoded.Add(1)
	if !entry.Supported() {
		c.unsupported.Add(1)
		logger.Warn(entry.UnsupportedError())
		if c.skipUnsupported {
			return
		}
	}
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

// result orders entries and failures by path so the outcome does not depend
// on worker scheduling.
func (c *collector) result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	slices.SortFunc(c.entries, func(a, b *Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	slices.SortFunc(c.failures, func(a, b Failure) int {
		return strings.Compare(a.Path, b.Path)
	})
	return &Result{
		Entries:  c.entries,
		Failures: c.failures,
		Stats: Stats{
			Found:       int(c.found.Load()),
			Decoded:     int(c.decoded.Load()),
			Failed:      int(c.failed.Load()),
			Unsupported: int(c.unsupported.Load()),
			Skipped:     int(c.skipped.Load()),
		},
	}
}

// ScanDirectory decodes every index file under cfg.Directory on a worker
// pool. Files that fail to decode are logged and listed in the result; they
// never stop the scan. When ctx is cancelled the partial result is returned
// together with the context error.
func ScanDirectory(ctx context.Context, cfg *config.Config) (*Result, error) {
	root := cfg.Directory
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan directory: %s is not a directory", root)
	}

	p, err := newPipeline(cfg, []string{root})
	if err != nil {
		return nil, err
	}
	matcher := utils.NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns)
	bar := newProgressBar(ctx, cfg, root, matcher)

	progressCh := make(chan int, max(cfg.ConcurrencyLevel*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	var ioLimiter *rate.Limiter
	if cfg.MaxIOPerSecond > 0 {
		ioLimiter = rate.NewLimiter(rate.Limit(cfg.MaxIOPerSecond), cfg.MaxIOPerSecond)
	}
	adjustConcurrency(cfg)

	col := &collector{skipUnsupported: cfg.SkipUnsupported}
	filesChan := make(chan fileScanTask, cfg.ConcurrencyLevel)

	go func() {
		defer close(filesChan)
		err := walkIndexFiles(ctx, root, matcher, func(path string, info os.FileInfo) error {
			col.found.Add(1)
			if !utils.IsPathWithin(path, p.roots) {
				logger.Warnf("Skipping file outside target directory: %s", path)
				col.skipped.Add(1)
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case filesChan <- fileScanTask{path: path, info: info}:
				if ioLimiter != nil {
					if err := ioLimiter.Wait(ctx); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("Error walking path %s: %v", root, err)
		}
	}()

	var wg sync.WaitGroup
	for range cfg.ConcurrencyLevel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range filesChan {
				if ctx.Err() != nil {
					continue
				}
				col.add(p.scanFile(ctx, task.path, task.info))
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	close(progressCh)
	progressWG.Wait()
	_ = bar.Finish()

	res := col.result()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func newProgressBar(ctx context.Context, cfg *config.Config, root string, matcher *utils.PatternMatcher) *progressbar.ProgressBar {
	visible := !cfg.Quiet && progressVisible()
	if cfg.SkipCount {
		return progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Decoding index files"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetVisibility(visible),
			progressbar.OptionFullWidth(),
		)
	}
	logger.Info("Counting index files...")
	total, err := countIndexFiles(ctx, root, matcher)
	if err != nil {
		logger.Warnf("Failed to count files in %s: %v", root, err)
	}
	logger.Infof("Index files to decode: %d", total)
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Decoding index files"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionFullWidth(),
	)
}

func adjustConcurrency(cfg *config.Config) {
	if cfg.ConcurrencySet {
		return
	}
	numCPU := runtime.NumCPU()
	switch cfg.NiceLevel {
	case "high":
		cfg.ConcurrencyLevel = numCPU
	case "medium":
		cfg.ConcurrencyLevel = max(numCPU/2, 1)
	case "low":
		cfg.ConcurrencyLevel = 1
	}
	if cfg.ConcurrencyLevel < 1 {
		cfg.ConcurrencyLevel = 1
	}
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("JAVAIDX_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}
