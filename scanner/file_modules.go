package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"javaidx/config"
	"javaidx/fuzzy"
	"javaidx/hasher"
	"javaidx/idx"
	"javaidx/logger"
	"javaidx/metadata"
	"javaidx/scanner/prefilter"
	"javaidx/utils"

	"github.com/h2non/filetype"
)

// FileModule adds one kind of evidence to a decoded entry.
type FileModule interface {
	Name() string
	Enabled(cfg *config.Config) bool
	Collect(ctx context.Context, fc *FileContext, entry *Entry) error
}

// FileContext carries what the modules share for one index file.
type FileContext struct {
	Path   string
	Info   os.FileInfo
	Cfg    *config.Config
	Record *idx.Record
}

func buildFileModules(cfg *config.Config) ([]FileModule, error) {
	var watchlist *prefilter.Watchlist
	if cfg.WatchlistFile != "" {
		wl, err := prefilter.LoadWatchlist(cfg.WatchlistFile)
		if err != nil {
			return nil, fmt.Errorf("load watchlist: %w", err)
		}
		logger.Infof("Loaded %d watchlist entries from %s", wl.Len(), cfg.WatchlistFile)
		watchlist = wl
	}
	return []FileModule{
		evidenceModule{},
		hashModule{},
		xattrModule{},
		contentModule{fuzzy: buildFuzzyHashers(cfg)},
		searchModule{counter: prefilter.BuildSearchCounter(cfg.SearchTerms)},
		watchlistModule{list: watchlist},
	}, nil
}

type evidenceModule struct{}

func (m evidenceModule) Name() string { return "evidence" }

func (m evidenceModule) Enabled(cfg *config.Config) bool { return true }

func (m evidenceModule) Collect(ctx context.Context, fc *FileContext, entry *Entry) error {
	info := fc.Info
	if info == nil {
		var err error
		if info, err = os.Stat(fc.Path); err != nil {
			return err
		}
	}
	ev := entry.evidence()
	ev.Size = info.Size()
	ev.ModTime = info.ModTime().Format(time.RFC3339)
	ev.Permissions = info.Mode().Perm().String()
	if err := stampTimes(ev, fc.Path); err != nil {
		logger.Debugf("Reading file times of %s failed: %v", fc.Path, err)
	}
	ev.FileID = getFileID(fc.Path, info)
	return nil
}

type hashModule struct{}

func (m hashModule) Name() string { return "hashes" }

func (m hashModule) Enabled(cfg *config.Config) bool { return len(cfg.HashAlgorithms) > 0 }

func (m hashModule) Collect(ctx context.Context, fc *FileContext, entry *Entry) error {
	hashes, err := hasher.ComputeHashes(fc.Path, fc.Cfg.HashAlgorithms)
	if err != nil {
		return err
	}
	entry.evidence().Hashes = hashes
	return nil
}

type xattrModule struct{}

func (m xattrModule) Name() string { return "xattrs" }

func (m xattrModule) Enabled(cfg *config.Config) bool { return cfg.CollectXattrs }

func (m xattrModule) Collect(ctx context.Context, fc *FileContext, entry *Entry) error {
	xattrs, err := getXattrs(fc.Path, fc.Cfg.XattrMaxValueSize)
	if errors.Is(err, errNotSupported) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(xattrs) > 0 {
		entry.evidence().Xattrs = xattrs
	}
	return nil
}

// contentModule inspects the cached resource that sits next to the index file.
type contentModule struct {
	fuzzy []fuzzy.Hasher
}

func (m contentModule) Name() string { return "content" }

func (m contentModule) Enabled(cfg *config.Config) bool { return cfg.InspectContent }

func (m contentModule) Collect(ctx context.Context, fc *FileContext, entry *Entry) error {
	contentPath, ok := utils.CompanionPath(fc.Path)
	if !ok {
		return nil
	}
	info, err := os.Stat(contentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	if !utils.IsPathWithin(contentPath, []string{filepath.Dir(fc.Path)}) {
		logger.Warnf("Skipping cached content outside the cache directory: %s", contentPath)
		return nil
	}

	content := &Content{Path: contentPath, Size: info.Size()}
	content.MimeType = contentMimeType(contentPath, fc.Record)
	if len(fc.Cfg.HashAlgorithms) > 0 {
		hashes, err := hasher.ComputeHashes(contentPath, fc.Cfg.HashAlgorithms)
		if err != nil {
			logger.Debugf("Hashing cached content %s failed: %v", contentPath, err)
		} else {
			content.Hashes = hashes
		}
	}
	if content.MimeType != "" {
		content.Metadata = metadata.ExtractMetadata(contentPath, content.MimeType, fc.Cfg.MetadataMaxBytes)
	}
	if fc.Cfg.FuzzyHash && info.Size() >= fc.Cfg.FuzzyMinSize {
		content.FuzzyHashes = m.fuzzyHashes(contentPath)
	}
	entry.Content = content
	return nil
}

func (m contentModule) fuzzyHashes(path string) map[string]string {
	results := make(map[string]string)
	for _, h := range m.fuzzy {
		digest, err := fuzzy.HashFile(h, path)
		if err != nil {
			logger.Debugf("Fuzzy hash %s failed for %s: %v", h.Name(), path, err)
			continue
		}
		if digest != "" {
			results[h.Name()] = digest
		}
	}
	if len(results) == 0 {
		return nil
	}
	return results
}

// searchModule counts the configured terms in the URL, codebase IP and
// headers of the record.
type searchModule struct {
	counter prefilter.SearchCounter
}

func (m searchModule) Name() string { return "search" }

func (m searchModule) Enabled(cfg *config.Config) bool { return len(cfg.SearchTerms) > 0 }

func (m searchModule) Collect(ctx context.Context, fc *FileContext, entry *Entry) error {
	if m.counter == nil {
		return nil
	}
	rec := fc.Record
	text := strings.Join([]string{rec.URL, rec.CodebaseIP, rec.HeadersText()}, "\n")
	if hits := m.counter.Count(text); len(hits) > 0 {
		entry.SearchHits = hits
	}
	return nil
}

type watchlistModule struct {
	list *prefilter.Watchlist
}

func (m watchlistModule) Name() string { return "watchlist" }

func (m watchlistModule) Enabled(cfg *config.Config) bool {
	return cfg.WatchlistFile != "" && m.list.Len() > 0
}

func (m watchlistModule) Collect(ctx context.Context, fc *FileContext, entry *Entry) error {
	if hits := m.list.Match(fc.Record.URL, fc.Record.CodebaseIP); len(hits) > 0 {
		entry.WatchlistHits = hits
	}
	return nil
}

func buildFuzzyHashers(cfg *config.Config) []fuzzy.Hasher {
	if !cfg.FuzzyHash {
		return nil
	}
	h, ok := fuzzy.Lookup("tlsh")
	if !ok {
		logger.Warn("TLSH hashing is not available")
		return nil
	}
	return []fuzzy.Hasher{h}
}

// contentMimeType sniffs the file first and falls back to the URL extension
// and then the Content-Type header of the record.
func contentMimeType(contentPath string, rec *idx.Record) string {
	sniffed, _ := getMimeType(contentPath)
	byURL := mimeFromURL(rec)
	switch {
	case sniffed == "application/zip" && byURL == metadata.MimeJAR:
		return metadata.MimeJAR
	case sniffed != "":
		return sniffed
	case byURL != "":
		return byURL
	}
	if rec != nil {
		if ct, ok := rec.Header("content-type"); ok {
			mediaType, _, _ := strings.Cut(ct, ";")
			return strings.ToLower(strings.TrimSpace(mediaType))
		}
	}
	return ""
}

func mimeFromURL(rec *idx.Record) string {
	if rec == nil || rec.URL == "" {
		return ""
	}
	u := rec.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".jar":
		return metadata.MimeJAR
	case ".jnlp":
		return metadata.MimeJNLP
	}
	return ""
}

// getMimeType returns "" when the type cannot be identified.
func getMimeType(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	buf := make([]byte, 261)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	kind, err := filetype.Match(buf[:n])
	if err != nil {
		return "", err
	}
	if kind == filetype.Unknown {
		return "", nil
	}
	return kind.MIME.Value, nil
}

var errNotSupported = errors.New("not supported")
